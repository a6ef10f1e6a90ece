// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/pkg/logger"
)

const botUsername = "Check-in Integrity Bot"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// FlaggedCheckIn describes a suspicious check-in for alerting.
type FlaggedCheckIn struct {
	CheckInID  uint
	UserID     uint
	EventID    uint
	EventTitle string
	Method     string
	FraudScore float64
	Reason     string
	CreatedAt  time.Time
}

// SendFlaggedCheckInAlert notifies moderators about a flagged check-in.
func (c *Client) SendFlaggedCheckInAlert(ctx context.Context, alert FlaggedCheckIn) error {
	event := fmt.Sprintf("#%d", alert.EventID)
	if alert.EventTitle != "" {
		event = fmt.Sprintf("%s (#%d)", alert.EventTitle, alert.EventID)
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Attachments: []Attachment{
			{
				Fallback: fmt.Sprintf("Check-in #%d flagged with score %.0f", alert.CheckInID, alert.FraudScore),
				Color:    scoreColor(alert.FraudScore),
				Title:    fmt.Sprintf("🚩 Suspicious check-in #%d", alert.CheckInID),
				Text:     alert.Reason,
				Fields: []Field{
					{Short: true, Title: "User", Value: fmt.Sprintf("#%d", alert.UserID)},
					{Short: true, Title: "Event", Value: event},
					{Short: true, Title: "Fraud score", Value: fmt.Sprintf("%.0f / 100", alert.FraudScore)},
					{Short: true, Title: "Method", Value: alert.Method},
				},
				Footer: alert.CreatedAt.UTC().Format(time.RFC3339),
			},
		},
	})
}

// IntegrityReport summarizes check-in activity over a period.
type IntegrityReport struct {
	Since      time.Time
	Total      int64
	Flagged    int64
	TopFlagged []FlaggedCheckIn
}

// SendDailyIntegrityReport posts the daily check-in integrity summary.
func (c *Client) SendDailyIntegrityReport(ctx context.Context, report IntegrityReport) error {
	if report.Total == 0 {
		c.log.Debug().Msg("No check-ins in report window, skipping integrity report")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 📊 Daily Check-in Integrity Report\n\n")
	fmt.Fprintf(&b, "Since %s: **%d** check-ins, **%d** flagged (%.1f%%)\n",
		report.Since.UTC().Format("2006-01-02 15:04 MST"),
		report.Total, report.Flagged,
		float64(report.Flagged)*100/float64(report.Total))

	if len(report.TopFlagged) > 0 {
		b.WriteString("\n| Check-in | User | Event | Score | Reason |\n|---|---|---|---|---|\n")
		for _, f := range report.TopFlagged {
			icon := "•"
			if f.FraudScore >= 90 {
				icon = "⚠️"
			}
			fmt.Fprintf(&b, "| %s #%d | #%d | #%d | %.0f | %s |\n", icon, f.CheckInID, f.UserID, f.EventID, f.FraudScore, f.Reason)
		}
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     b.String(),
	})
}

func scoreColor(score float64) string {
	switch {
	case score >= 90:
		return "#d24b4e"
	case score > 70:
		return "#f2a33a"
	default:
		return "#3a87ad"
	}
}
