package notifier

import (
	"context"
	"fmt"
	"net/http"

	"monitord/internal/models"
)

type Slack struct {
	WebhookURL string
	HTTP       *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{WebhookURL: webhookURL, HTTP: newHTTPClient()}
}

func (s *Slack) Name() models.Channel { return models.ChannelSlack }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

func (s *Slack) Deliver(ctx context.Context, a models.Alert) error {
	if s.WebhookURL == "" {
		return ErrNotConfigured
	}
	payload := map[string]any{
		"text": fmt.Sprintf("Alert: %s", a.Title),
		"attachments": []slackAttachment{{
			Color: SlackColor(a.Severity),
			Title: a.Title,
			Text:  a.Message,
			Fields: []slackField{
				{Title: "Component", Value: a.Component, Short: true},
				{Title: "Severity", Value: a.Severity.String(), Short: true},
				{Title: "Current Value", Value: fmt.Sprintf("%.2f", a.CurrentValue), Short: true},
				{Title: "Threshold", Value: fmt.Sprintf("%.2f", a.ThresholdValue), Short: true},
			},
			Footer: "monitord",
			TS:     a.Timestamp.Unix(),
		}},
	}
	return postJSON(ctx, s.HTTP, s.WebhookURL, payload)
}
