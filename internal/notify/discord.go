// Package notify renders classified trades into Discord webhook cards and
// drains them to the rate-limited webhook endpoints in strict order.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rollmaster/rollwatch/internal/domain"
)

// Sender delivers one notification job to its destination endpoint.
type Sender interface {
	// Send posts the rendered payload for job to job.WebhookURL. A 429
	// response is reported as *ThrottledError; any other non-success status
	// wraps domain.ErrDestinationRejected.
	Send(ctx context.Context, job domain.NotificationJob) error
}

// ThrottledError reports a "too many requests" response from the destination.
// RetryAfter is the server's suggested delay, or zero when the response
// carried none.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("destination throttled, retry after %s", e.RetryAfter)
}

// DiscordSender posts notification cards to Discord webhooks. The destination
// URL lives on each job, so one sender serves both directions.
type DiscordSender struct {
	client *http.Client
	loc    *time.Location
	logger *slog.Logger
}

// NewDiscordSender creates a DiscordSender. Footer timestamps are rendered in
// the given IANA timezone, falling back to UTC when it cannot be loaded. It
// uses a default HTTP client with a 10-second timeout.
func NewDiscordSender(timezone string, logger *slog.Logger) *DiscordSender {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC",
			slog.String("timezone", timezone),
		)
		loc = time.UTC
	}
	return &DiscordSender{
		client: &http.Client{Timeout: 10 * time.Second},
		loc:    loc,
		logger: logger.With(slog.String("component", "discord")),
	}
}

// Send renders the job (trade card, or the credential-expired alert when the
// balance snapshot is nil) and posts it to the job's webhook URL.
func (d *DiscordSender) Send(ctx context.Context, job domain.NotificationJob) error {
	payload := renderPayload(job, time.Now().In(d.loc))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode == http.StatusTooManyRequests {
		return &ThrottledError{RetryAfter: retryAfter(resp, respBody)}
	}

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord: status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrDestinationRejected)
	}

	return nil
}

// retryAfter extracts the retry delay from a 429 response: the Retry-After
// header takes precedence, then the JSON body's retry_after (both in
// seconds). Zero means no usable delay was supplied.
func retryAfter(resp *http.Response, body []byte) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}

	var parsed struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.RetryAfter > 0 {
		return time.Duration(parsed.RetryAfter * float64(time.Second))
	}

	return 0
}
