package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rollmaster/rollwatch/internal/domain"
)

// Embed accent colors: red for deposits leaving the inventory, green for
// withdrawals, and a hard red for the credential-expired alert.
const (
	colorDeposit  = 0xF04747
	colorWithdraw = 0x43B581
	colorAlert    = 0xFF0000
)

const (
	authorIconURL   = "https://cdn-icons-png.flaticon.com/128/9260/9260717.png"
	timestampFormat = "02-01-2006 15:04:05"
	footerFormat    = "📅 Timestamp: %s | Powered by RollMaster"
)

// webhookPayload is the Discord webhook request body.
type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Author      *embedAuthor `json:"author,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// renderPayload builds the webhook body for a job. A nil balance snapshot
// means the session cookie expired while the trade was being enriched; that
// renders a distinct alert instead of the usual trade card.
func renderPayload(job domain.NotificationJob, now time.Time) webhookPayload {
	ts := now.Format(timestampFormat)
	if job.Balance == nil {
		return webhookPayload{Embeds: []embed{renderExpiredAlert(job, ts)}}
	}
	return webhookPayload{Embeds: []embed{renderTradeCard(job, ts)}}
}

// renderTradeCard builds the standard notification card.
func renderTradeCard(job domain.NotificationJob, ts string) embed {
	color := colorWithdraw
	if job.Direction == domain.DirectionDeposit {
		color = colorDeposit
	}

	return embed{
		Author: &embedAuthor{
			Name:    fmt.Sprintf("%s %s Trade Notification", directionEmoji(job.Direction), job.Direction),
			IconURL: authorIconURL,
		},
		Title: fmt.Sprintf("%s Trade Status: %s", statusEmoji(job.Status), job.Status),
		Color: color,
		Fields: []embedField{
			{Name: "Item", Value: itemName(job.Item), Inline: true},
			{Name: "Value", Value: formatMoney(job.Item.Value)},
			{Name: "Markup", Value: formatMarkup(job.Item.MarkupPercent)},
			{Name: "Total Sticker Value", Value: fmt.Sprintf("$%.2f", job.TotalStickerValue)},
			{Name: "Balance", Value: fmt.Sprintf("$%.2f", *job.Balance)},
			{Name: "Applied Stickers", Value: formatStickers(job.Item.Stickers)},
		},
		Footer: &embedFooter{Text: fmt.Sprintf(footerFormat, ts)},
	}
}

// renderExpiredAlert builds the credential-expired alert. Numeric balance
// fields are deliberately absent.
func renderExpiredAlert(job domain.NotificationJob, ts string) embed {
	return embed{
		Author: &embedAuthor{
			Name:    fmt.Sprintf("%s Cookie Expirado!", directionEmoji(job.Direction)),
			IconURL: authorIconURL,
		},
		Description: "O cookie usado para a autenticação expirou, e o saldo não pôde ser recuperado.",
		Color:       colorAlert,
		Fields: []embedField{
			{Name: "Item", Value: itemName(job.Item), Inline: true},
			{Name: "Trade Type", Value: string(job.Direction), Inline: true},
			{Name: "Status", Value: string(job.Status), Inline: true},
			{Name: "Timestamp", Value: ts},
		},
		Footer: &embedFooter{Text: fmt.Sprintf(footerFormat, ts)},
	}
}

func directionEmoji(dir domain.Direction) string {
	if dir == domain.DirectionDeposit {
		return "🔴"
	}
	return "🟢"
}

func statusEmoji(status domain.TradeStatus) string {
	switch status {
	case domain.StatusCompleted:
		return "✅"
	case domain.StatusCancelled:
		return "❌"
	case domain.StatusListed:
		return "📰"
	case domain.StatusProcessing:
		return "⏳"
	case domain.StatusJoined:
		return "🤝"
	default:
		return "❓"
	}
}

func itemName(item domain.ItemSummary) string {
	if item.MarketName == "" {
		return "Unknown"
	}
	return item.MarketName
}

// formatMoney renders a monetary value with two decimals, or the placeholder
// when the trade carried no item value.
func formatMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

// formatMarkup renders the markup percent, defaulting to 0% when absent.
func formatMarkup(v *float64) string {
	if v == nil {
		return "0%"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

// formatStickers renders one display line per sticker. Scraped stickers stay
// in the display even though they are excluded from the total.
func formatStickers(stickers []domain.Sticker) string {
	if len(stickers) == 0 {
		return "None"
	}

	lines := make([]string, 0, len(stickers))
	for _, s := range stickers {
		info := s.Name
		if s.Color != "" {
			info = s.Color + " " + s.Name
		}
		value := strconv.FormatFloat(s.Value, 'f', -1, 64)
		if s.Fresh() {
			lines = append(lines, fmt.Sprintf("%s Value: %s", info, value))
		} else {
			lines = append(lines, fmt.Sprintf("%s (scraped) Value: %s", info, value))
		}
	}
	return strings.Join(lines, "\n")
}
