package notifier

import (
	"context"
	"net/http"

	"monitord/internal/models"
)

// Webhook posts the whole alert as JSON to an operator endpoint.
type Webhook struct {
	URL  string
	HTTP *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{URL: url, HTTP: newHTTPClient()}
}

func (w *Webhook) Name() models.Channel { return models.ChannelWebhook }

func (w *Webhook) Deliver(ctx context.Context, a models.Alert) error {
	if w.URL == "" {
		return ErrNotConfigured
	}
	return postJSON(ctx, w.HTTP, w.URL, map[string]any{"event": "alert", "alert": a})
}
