package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollmaster/rollwatch/internal/domain"
)

func fieldValue(t *testing.T, e embed, name string) string {
	t.Helper()
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	require.Failf(t, "missing field", "field %q not found", name)
	return ""
}

func TestRenderTradeCard(t *testing.T) {
	job := cardJob()
	balance := 250.5
	job.Balance = &balance

	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	payload := renderPayload(job, now)
	require.Len(t, payload.Embeds, 1)
	e := payload.Embeds[0]

	assert.Equal(t, colorDeposit, e.Color)
	assert.Equal(t, "🔴 Deposit Trade Notification", e.Author.Name)
	assert.Equal(t, "✅ Trade Status: COMPLETED", e.Title)
	assert.Equal(t, "AK-47", fieldValue(t, e, "Item"))
	assert.Equal(t, "$100.00", fieldValue(t, e, "Value"))
	assert.Equal(t, "5%", fieldValue(t, e, "Markup"))
	assert.Equal(t, "$10.00", fieldValue(t, e, "Total Sticker Value"))
	assert.Equal(t, "$250.50", fieldValue(t, e, "Balance"))
	assert.Equal(t, "S1 Value: 10\nGold S2 (scraped) Value: 3", fieldValue(t, e, "Applied Stickers"))
	assert.Contains(t, e.Footer.Text, "14-03-2025 15:09:26")
}

func TestRenderTradeCardWithdrawAccent(t *testing.T) {
	job := cardJob()
	balance := 1.0
	job.Balance = &balance
	job.Direction = domain.DirectionWithdraw

	e := renderPayload(job, time.Now()).Embeds[0]
	assert.Equal(t, colorWithdraw, e.Color)
	assert.Equal(t, "🟢 Withdraw Trade Notification", e.Author.Name)
}

func TestRenderPlaceholderItem(t *testing.T) {
	balance := 5.0
	job := domain.NotificationJob{
		Direction: domain.DirectionWithdraw,
		Status:    domain.StatusJoined,
		Item:      domain.ItemSummary{MarketName: "-"},
		Balance:   &balance,
	}

	e := renderPayload(job, time.Now()).Embeds[0]
	assert.Equal(t, "-", fieldValue(t, e, "Item"))
	assert.Equal(t, "-", fieldValue(t, e, "Value"))
	assert.Equal(t, "0%", fieldValue(t, e, "Markup"))
	assert.Equal(t, "None", fieldValue(t, e, "Applied Stickers"))
}

func TestRenderExpiredAlert(t *testing.T) {
	job := cardJob()
	job.Balance = nil

	e := renderPayload(job, time.Now()).Embeds[0]

	assert.Equal(t, colorAlert, e.Color)
	assert.Contains(t, e.Author.Name, "Cookie Expirado")
	assert.NotEmpty(t, e.Description)
	assert.Equal(t, "Deposit", fieldValue(t, e, "Trade Type"))
	assert.Equal(t, "COMPLETED", fieldValue(t, e, "Status"))
	// The alert deliberately carries no numeric balance or value fields.
	for _, f := range e.Fields {
		assert.NotEqual(t, "Balance", f.Name)
		assert.NotEqual(t, "Value", f.Name)
	}
}

func TestStatusEmoji(t *testing.T) {
	assert.Equal(t, "✅", statusEmoji(domain.StatusCompleted))
	assert.Equal(t, "❌", statusEmoji(domain.StatusCancelled))
	assert.Equal(t, "📰", statusEmoji(domain.StatusListed))
	assert.Equal(t, "⏳", statusEmoji(domain.StatusProcessing))
	assert.Equal(t, "🤝", statusEmoji(domain.StatusJoined))
	assert.Equal(t, "❓", statusEmoji(domain.TradeStatus("WEIRD")))
}
