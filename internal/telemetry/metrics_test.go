package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monitord/internal/alerts"
	"monitord/internal/models"
)

func TestAlertEventsUpdateCounters(t *testing.T) {
	m := New()
	a := models.Alert{Component: "system", Severity: models.SeverityCritical}
	m.AlertEvent(alerts.Event{Kind: alerts.EventCreated, Alert: a, Active: 1})
	m.AlertEvent(alerts.Event{Kind: alerts.EventDelivered, Alert: a, Active: 1,
		Delivery: &models.DeliveryResult{Channel: models.ChannelSlack, Status: models.DeliveryFailed}})
	m.AlertEvent(alerts.Event{Kind: alerts.EventResolved, Alert: a, Active: 0})

	assertExposed(t, m,
		`monitord_alerts_created_total{component="system",severity="critical"} 1`,
		`monitord_deliveries_total{channel="slack",status="failed"} 1`,
		"monitord_active_alerts 0",
	)
}

func TestHandlerExposesCycleMetrics(t *testing.T) {
	m := New()
	m.CycleFinished(120*time.Millisecond, nil)
	m.CycleFinished(time.Second, errors.New("boom"))
	m.SnapshotCollected(models.Snapshot{"system": {"cpu_percent": 42.5}})

	assertExposed(t, m,
		"monitord_cycles_total 2",
		"monitord_cycle_errors_total 1",
		`monitord_metric_value{component="system",metric="cpu_percent"} 42.5`,
	)
}

func assertExposed(t *testing.T, m *Metrics, lines ...string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range lines {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
