// Package pipeline connects the trade feed to the notification dispatcher:
// classify, enrich with the current balance, enqueue.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/rollmaster/rollwatch/internal/classify"
	"github.com/rollmaster/rollwatch/internal/domain"
)

// BalanceFetcher supplies the tracked account's current balance. A nil result
// means the balance is unavailable (expired credential); it is carried into
// the job rather than treated as an error.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context) *float64
}

// Enqueuer accepts finished notification jobs for ordered delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, job domain.NotificationJob)
}

// TradeProcessor turns raw trade events into notification jobs. The balance
// is refreshed per classified event before the job is enqueued, so per-event
// throughput is bounded by the balance service's latency.
type TradeProcessor struct {
	trackedID   string
	depositURL  string
	withdrawURL string
	balances    BalanceFetcher
	queue       Enqueuer
	logger      *slog.Logger
}

// NewTradeProcessor creates a TradeProcessor for the given tracked account id
// and the two direction-specific webhook destinations.
func NewTradeProcessor(trackedID, depositURL, withdrawURL string, balances BalanceFetcher, queue Enqueuer, logger *slog.Logger) *TradeProcessor {
	return &TradeProcessor{
		trackedID:   trackedID,
		depositURL:  depositURL,
		withdrawURL: withdrawURL,
		balances:    balances,
		queue:       queue,
		logger:      logger.With(slog.String("component", "trade_processor")),
	}
}

// HandleTrade classifies one trade event and, when it concerns the tracked
// account, enqueues an enriched notification job. Irrelevant and still-listed
// trades are discarded silently.
func (p *TradeProcessor) HandleTrade(ctx context.Context, ev domain.TradeEvent) {
	result, ok := classify.Classify(ev, p.trackedID)
	if !ok {
		p.logger.DebugContext(ctx, "trade discarded",
			slog.String("trade_id", ev.ID),
			slog.String("status", string(ev.Status)),
		)
		return
	}

	balance := p.balances.FetchBalance(ctx)

	webhookURL := p.withdrawURL
	if result.Direction == domain.DirectionDeposit {
		webhookURL = p.depositURL
	}

	job := domain.NotificationJob{
		Direction:         result.Direction,
		Status:            result.Status,
		Item:              result.Item,
		TotalStickerValue: result.TotalStickerValue,
		Balance:           balance,
		WebhookURL:        webhookURL,
	}

	p.logger.InfoContext(ctx, "trade classified",
		slog.String("trade_id", ev.ID),
		slog.String("direction", string(result.Direction)),
		slog.String("status", string(result.Status)),
		slog.String("item", result.Item.MarketName),
		slog.Float64("total_sticker_value", result.TotalStickerValue),
		slog.Bool("balance_known", balance != nil),
	)

	p.queue.Enqueue(ctx, job)
}
