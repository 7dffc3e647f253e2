package domain

// Direction classifies a trade relative to the tracked account.
type Direction string

const (
	DirectionDeposit  Direction = "Deposit"
	DirectionWithdraw Direction = "Withdraw"
)

// ItemSummary is the rendered-facing view of the first item in a trade. A
// trade with no items is summarized with the "-" placeholder market name and
// nil value/markup.
type ItemSummary struct {
	MarketName    string
	Value         *float64
	MarkupPercent *float64
	Stickers      []Sticker
}

// NotificationJob is one outbound notification. It is immutable once built:
// the balance snapshot is the balance observed when the trade was classified,
// not the balance at delivery time.
type NotificationJob struct {
	Direction         Direction
	Status            TradeStatus
	Item              ItemSummary
	TotalStickerValue float64
	// Balance is nil when the balance lookup failed (expired credential);
	// the dispatcher renders a distinct alert payload in that case.
	Balance *float64
	// WebhookURL is the destination endpoint, selected by direction.
	WebhookURL string
}
