package domain

// TradeStatus is the lifecycle state a trade is reported in by the platform.
type TradeStatus string

const (
	StatusCompleted  TradeStatus = "COMPLETED"
	StatusCancelled  TradeStatus = "CANCELLED"
	StatusListed     TradeStatus = "LISTED"
	StatusProcessing TradeStatus = "PROCESSING"
	StatusJoined     TradeStatus = "JOINED"
)

// Party is one side of a trade (depositor or withdrawer).
type Party struct {
	ID          string `json:"id"`
	SteamID     string `json:"steamId"`
	DisplayName string `json:"displayName"`
}

// Sticker is a sticker applied to a traded item. Wear 0 means the sticker is
// unworn ("fresh"); any other wear means it has been scraped.
type Sticker struct {
	Wear  float64 `json:"wear"`
	Value float64 `json:"value"`
	Name  string  `json:"name"`
	Color string  `json:"color,omitempty"`
}

// Fresh reports whether the sticker is unworn and therefore counts toward the
// total sticker value.
func (s Sticker) Fresh() bool {
	return s.Wear == 0
}

// TradeItem is a single item inside a trade.
type TradeItem struct {
	MarketName    string    `json:"marketName"`
	Value         *float64  `json:"value"`
	MarkupPercent *float64  `json:"markupPercent"`
	Stickers      []Sticker `json:"stickers"`
}

// TradeEvent is a trade as reported by the platform feed, either freshly
// created or updated.
type TradeEvent struct {
	ID         string      `json:"id"`
	Status     TradeStatus `json:"status"`
	Depositor  Party       `json:"depositor"`
	Withdrawer Party       `json:"withdrawer"`
	TradeItems []TradeItem `json:"tradeItems"`
}
