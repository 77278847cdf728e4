package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"monitord/internal/models"
)

type Discord struct {
	WebhookURL string
	HTTP       *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{WebhookURL: webhookURL, HTTP: newHTTPClient()}
}

func (d *Discord) Name() models.Channel { return models.ChannelDiscord }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

func (d *Discord) Deliver(ctx context.Context, a models.Alert) error {
	if d.WebhookURL == "" {
		return ErrNotConfigured
	}
	payload := map[string]any{
		"embeds": []discordEmbed{{
			Title:       a.Title,
			Description: a.Message,
			Color:       DiscordColor(a.Severity),
			Fields: []discordField{
				{Name: "Component", Value: a.Component, Inline: true},
				{Name: "Severity", Value: strings.ToUpper(a.Severity.String()), Inline: true},
				{Name: "Current Value", Value: fmt.Sprintf("%.2f", a.CurrentValue), Inline: true},
				{Name: "Threshold", Value: fmt.Sprintf("%.2f", a.ThresholdValue), Inline: true},
			},
			Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, d.HTTP, d.WebhookURL, payload)
}
