// Package classify turns raw trade events into notification candidates for
// the tracked account. It is pure: no I/O, no clock, no shared state.
package classify

import (
	"strings"

	"github.com/rollmaster/rollwatch/internal/domain"
)

// placeholder is substituted for item fields when a trade carries no items.
const placeholder = "-"

// Result is a classified trade that is relevant to the tracked account.
type Result struct {
	Direction         domain.Direction
	Status            domain.TradeStatus
	Item              domain.ItemSummary
	TotalStickerValue float64
}

// Classify decides whether a trade event concerns the tracked account and, if
// so, in which direction. The second return value is false when the event
// must be discarded: trades still in the LISTED state are not actionable yet,
// and trades where the tracked account is neither depositor nor withdrawer
// are irrelevant. Exactly one of {Deposit, Withdraw, discard} applies.
func Classify(ev domain.TradeEvent, trackedID string) (Result, bool) {
	// Listed trades are still being offered; an update will follow once
	// someone joins. Status case varies between feed revisions, so match
	// case-insensitively.
	if strings.EqualFold(string(ev.Status), string(domain.StatusListed)) {
		return Result{}, false
	}

	var dir domain.Direction
	switch trackedID {
	case ev.Depositor.ID:
		dir = domain.DirectionDeposit
	case ev.Withdrawer.ID:
		dir = domain.DirectionWithdraw
	default:
		return Result{}, false
	}

	item := summarize(ev.TradeItems)

	return Result{
		Direction:         dir,
		Status:            ev.Status,
		Item:              item,
		TotalStickerValue: TotalStickerValue(item.Stickers),
	}, true
}

// summarize extracts the first item of the trade. Trades without items are
// summarized with placeholder values rather than rejected.
func summarize(items []domain.TradeItem) domain.ItemSummary {
	if len(items) == 0 {
		return domain.ItemSummary{MarketName: placeholder}
	}

	first := items[0]
	return domain.ItemSummary{
		MarketName:    first.MarketName,
		Value:         first.Value,
		MarkupPercent: first.MarkupPercent,
		Stickers:      first.Stickers,
	}
}

// TotalStickerValue sums the value of fresh (wear 0) stickers. Scraped
// stickers are excluded from the total but still shown in the rendered card.
func TotalStickerValue(stickers []domain.Sticker) float64 {
	var total float64
	for _, s := range stickers {
		if s.Fresh() {
			total += s.Value
		}
	}
	return total
}
