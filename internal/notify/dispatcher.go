package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rollmaster/rollwatch/internal/domain"
	"github.com/rollmaster/rollwatch/internal/metrics"
)

// Drain outcomes, used for logging and metrics labels.
const (
	outcomeDelivered = "delivered"
	outcomeDropped   = "dropped"
)

// Dispatcher owns the outbound FIFO queue and its single drain loop. Jobs are
// delivered in strict enqueue order: the head job blocks the queue until it
// is delivered or dropped, including across 429 retries. Enqueue is the only
// operation intended to be called from another goroutine.
type Dispatcher struct {
	sender           Sender
	messageDelay     time.Duration
	throttleFallback time.Duration
	logger           *slog.Logger

	mu       sync.Mutex
	queue    []domain.NotificationJob
	draining bool
}

// NewDispatcher creates a Dispatcher. messageDelay is the pause after each
// removed job that keeps the outbound rate below the sink's limit;
// throttleFallback is the wait applied to a 429 that carries no retry delay.
func NewDispatcher(sender Sender, messageDelay, throttleFallback time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:           sender,
		messageDelay:     messageDelay,
		throttleFallback: throttleFallback,
		logger:           logger.With(slog.String("component", "dispatcher")),
	}
}

// Enqueue appends a job to the tail of the queue and starts the drain loop if
// it is not already running. Starting is idempotent: at most one drain loop
// runs at any time.
func (d *Dispatcher) Enqueue(ctx context.Context, job domain.NotificationJob) {
	d.mu.Lock()
	d.queue = append(d.queue, job)
	metrics.QueueDepth.Set(float64(len(d.queue)))
	start := !d.draining
	if start {
		d.draining = true
	}
	d.mu.Unlock()

	if start {
		go d.drain(ctx)
	}
}

// Len returns the current queue depth.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// drain sequentially delivers queued jobs. Each iteration peeks the head
// without removing it, delivers it to completion (retrying the identical job
// through throttling), then removes it and pauses for the inter-message
// delay. The loop exits when the queue is empty; a later Enqueue restarts it.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		job := d.queue[0]
		d.mu.Unlock()

		outcome := d.deliver(ctx, job)

		d.mu.Lock()
		d.queue = d.queue[1:]
		metrics.QueueDepth.Set(float64(len(d.queue)))
		d.mu.Unlock()

		metrics.NotificationsTotal.WithLabelValues(string(job.Direction), outcome).Inc()

		// Every removal consumes one delay slot, whether the job was
		// delivered or dropped.
		if err := waitFor(ctx, d.messageDelay); err != nil {
			d.stop()
			return
		}
	}
}

// deliver submits one job until it either succeeds, is rejected, or the
// context ends. Throttling retries the same payload in a bounded loop rather
// than recursing, so sustained 429s cannot grow the stack.
func (d *Dispatcher) deliver(ctx context.Context, job domain.NotificationJob) string {
	for {
		err := d.sender.Send(ctx, job)
		if err == nil {
			d.logger.InfoContext(ctx, "notification delivered",
				slog.String("direction", string(job.Direction)),
				slog.String("status", string(job.Status)),
				slog.String("item", job.Item.MarketName),
			)
			return outcomeDelivered
		}

		var throttled *ThrottledError
		if errors.As(err, &throttled) {
			wait := throttled.RetryAfter
			if wait <= 0 {
				wait = d.throttleFallback
			}
			metrics.ThrottleRetriesTotal.Inc()
			d.logger.WarnContext(ctx, "destination throttled, retrying same job",
				slog.Duration("retry_after", wait),
			)
			if waitErr := waitFor(ctx, wait); waitErr != nil {
				return outcomeDropped
			}
			continue
		}

		if ctx.Err() != nil {
			return outcomeDropped
		}

		// Rejected outright: accepted data loss, no retry.
		d.logger.ErrorContext(ctx, "notification rejected, dropping job",
			slog.String("direction", string(job.Direction)),
			slog.String("error", err.Error()),
		)
		return outcomeDropped
	}
}

// stop marks the drain loop as no longer running.
func (d *Dispatcher) stop() {
	d.mu.Lock()
	d.draining = false
	d.mu.Unlock()
}

// waitFor sleeps for delay or until the context is cancelled.
func waitFor(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
