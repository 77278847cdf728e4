package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"monitord/internal/models"
)

// ErrNotConfigured is returned by a channel that has no destination set. The
// alert manager records it as a skipped delivery.
var ErrNotConfigured = errors.New("channel not configured")

// Channel delivers one alert to one external sink.
type Channel interface {
	Name() models.Channel
	Deliver(ctx context.Context, a models.Alert) error
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON sends payload to url and treats any status >= 300 as a failure.
func postJSON(ctx context.Context, hc *http.Client, url string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}

// SlackColor maps severity to a Slack attachment color.
func SlackColor(s models.Severity) string {
	switch s {
	case models.SeverityLow:
		return "good"
	case models.SeverityMedium:
		return "warning"
	case models.SeverityHigh:
		return "#ff9900"
	case models.SeverityCritical:
		return "danger"
	default:
		return "#808080"
	}
}

// DiscordColor maps severity to a Discord embed color.
func DiscordColor(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return 0x00ff00
	case models.SeverityMedium:
		return 0xffff00
	case models.SeverityHigh:
		return 0xff9900
	case models.SeverityCritical:
		return 0xff0000
	default:
		return 0x808080
	}
}
