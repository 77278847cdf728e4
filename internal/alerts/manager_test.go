package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"monitord/internal/models"
	"monitord/internal/notifier"
)

type fakeChannel struct {
	name  models.Channel
	err   error
	fails int

	mu    sync.Mutex
	calls []models.Alert
}

func (f *fakeChannel) Name() models.Channel { return f.name }

func (f *fakeChannel) Deliver(_ context.Context, a models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a)
	if f.fails > 0 {
		f.fails--
		return errors.New("temporary failure")
	}
	return f.err
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type panicChannel struct{}

func (panicChannel) Name() models.Channel { return models.ChannelDiscord }
func (panicChannel) Deliver(context.Context, models.Alert) error {
	panic("boom")
}

type memJournal struct {
	mu         sync.Mutex
	alerts     []string
	resolved   []string
	deliveries []models.DeliveryResult
}

func (j *memJournal) RecordAlert(_ context.Context, a models.Alert) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.alerts = append(j.alerts, a.ID)
	return nil
}

func (j *memJournal) RecordResolution(_ context.Context, id string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.resolved = append(j.resolved, id)
	return nil
}

func (j *memJournal) RecordDelivery(_ context.Context, _ string, res models.DeliveryResult, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deliveries = append(j.deliveries, res)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(channels ...notifier.Channel) (*Manager, *time.Time) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	m := NewManager(discardLogger(), channels, nil)
	m.now = func() time.Time { return now }
	m.Backoff = 0
	return m, &now
}

func TestCreateAlertAssignsUniqueIDs(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	a := m.CreateAlert(ctx, models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityHigh})
	b := m.CreateAlert(ctx, models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityHigh})
	if a.ID == b.ID {
		t.Fatalf("ids collide within the same second: %s", a.ID)
	}
	if !strings.HasPrefix(a.ID, "system_cpu_percent_1771675200_") {
		t.Fatalf("id = %s", a.ID)
	}
	if a.Timestamp.IsZero() || a.Resolved {
		t.Fatalf("alert = %+v", a)
	}
	if got := len(m.ActiveAlerts()); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}
}

func TestResolveAlertIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	j := &memJournal{}
	m.journal = j
	ctx := context.Background()
	a := m.CreateAlert(ctx, models.Alert{Component: "system", MetricName: "memory_percent", Severity: models.SeverityHigh})

	if m.ResolveAlert(ctx, "unknown") {
		t.Fatal("resolving unknown id returned true")
	}
	if !m.ResolveAlert(ctx, a.ID) {
		t.Fatal("resolving active alert returned false")
	}
	if len(m.ActiveAlerts()) != 0 {
		t.Fatal("alert still active")
	}
	if m.ResolveAlert(ctx, a.ID) {
		t.Fatal("second resolve returned true")
	}
	h := m.History(0)
	if len(h) != 1 || h[0].Resolved {
		t.Fatalf("history = %+v, want the unresolved creation copy", h)
	}
	if len(j.alerts) != 1 || len(j.resolved) != 1 {
		t.Fatalf("journal = %+v", j)
	}
}

func TestSendAlertIsolatesChannelFailures(t *testing.T) {
	email := &fakeChannel{name: models.ChannelEmail, err: errors.New("smtp unreachable")}
	slack := &fakeChannel{name: models.ChannelSlack}
	m, _ := newTestManager(email, slack, panicChannel{})
	j := &memJournal{}
	m.journal = j

	a := m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityCritical})
	res := m.SendAlert(context.Background(), a, []models.Channel{models.ChannelEmail, models.ChannelSlack, models.ChannelDiscord, models.ChannelWebhook, models.ChannelSlack})

	if len(res) != 4 {
		t.Fatalf("results = %d, want 4", len(res))
	}
	want := []struct {
		ch       models.Channel
		status   models.DeliveryStatus
		attempts int
	}{
		{models.ChannelEmail, models.DeliveryFailed, 3},
		{models.ChannelSlack, models.DeliverySent, 1},
		{models.ChannelDiscord, models.DeliveryFailed, 1},
		{models.ChannelWebhook, models.DeliverySkipped, 0},
	}
	for i, w := range want {
		if res[i].Channel != w.ch || res[i].Status != w.status || res[i].Attempts != w.attempts {
			t.Fatalf("result[%d] = %+v, want %v/%s/%d", i, res[i], w.ch, w.status, w.attempts)
		}
	}
	if email.count() != 3 || slack.count() != 1 {
		t.Fatalf("calls email=%d slack=%d, want 3 and 1", email.count(), slack.count())
	}
	if len(j.deliveries) != 4 {
		t.Fatalf("journal deliveries = %d, want 4", len(j.deliveries))
	}
}

func TestSendAlertRetriesThenSucceeds(t *testing.T) {
	hook := &fakeChannel{name: models.ChannelWebhook, fails: 2}
	m, _ := newTestManager(hook)
	res := m.SendAlert(context.Background(), models.Alert{ID: "x"}, []models.Channel{models.ChannelWebhook})
	if res[0].Status != models.DeliverySent || res[0].Attempts != 3 {
		t.Fatalf("result = %+v, want sent after 3 attempts", res[0])
	}
}

func TestSummaryAggregatesActiveAlerts(t *testing.T) {
	m, now := newTestManager()
	ctx := context.Background()
	m.CreateAlert(ctx, models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityCritical})
	*now = now.Add(time.Second)
	m.CreateAlert(ctx, models.Alert{Component: "system", MetricName: "memory_percent", Severity: models.SeverityHigh})
	*now = now.Add(time.Second)
	last := m.CreateAlert(ctx, models.Alert{Component: "database", MetricName: "slow_queries", Severity: models.SeverityHigh})

	s := m.Summary()
	if s.TotalActive != 3 {
		t.Fatalf("total = %d, want 3", s.TotalActive)
	}
	if len(s.CountsBySeverity) != 2 || s.CountsBySeverity["critical"] != 1 || s.CountsBySeverity["high"] != 2 {
		t.Fatalf("by severity = %v", s.CountsBySeverity)
	}
	if len(s.CountsByComponent) != 2 || s.CountsByComponent["system"] != 2 || s.CountsByComponent["database"] != 1 {
		t.Fatalf("by component = %v", s.CountsByComponent)
	}
	if len(s.MostRecent) != 3 || s.MostRecent[0].ID != last.ID {
		t.Fatalf("most recent = %+v", s.MostRecent)
	}
}

func TestSummaryBoundsMostRecent(t *testing.T) {
	m, now := newTestManager()
	for i := 0; i < MostRecentLimit+5; i++ {
		*now = now.Add(time.Second)
		m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityLow})
	}
	if got := len(m.Summary().MostRecent); got != MostRecentLimit {
		t.Fatalf("most recent = %d, want %d", got, MostRecentLimit)
	}
	if got := len(m.History(3)); got != 3 {
		t.Fatalf("history(3) = %d", got)
	}
}

func TestHistoryLimit(t *testing.T) {
	m, now := newTestManager()
	m.HistoryLimit = 5
	var last models.Alert
	for i := 0; i < 8; i++ {
		*now = now.Add(time.Second)
		last = m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityLow})
	}
	h := m.History(0)
	if len(h) != 5 || h[0].ID != last.ID {
		t.Fatalf("history = %d entries, newest %q, want 5 and %q", len(h), h[0].ID, last.ID)
	}

	m, now = newTestManager()
	m.HistoryLimit = 0
	for i := 0; i < DefaultHistoryLimit+1; i++ {
		*now = now.Add(time.Second)
		m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityLow})
	}
	if got := len(m.History(0)); got != DefaultHistoryLimit+1 {
		t.Fatalf("unbounded history = %d, want %d", got, DefaultHistoryLimit+1)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	m, _ := newTestManager(&fakeChannel{name: models.ChannelSlack})
	var kinds []EventKind
	m.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })
	a := m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityHigh})
	m.SendAlert(context.Background(), a, []models.Channel{models.ChannelSlack})
	m.ResolveAlert(context.Background(), a.ID)
	if len(kinds) != 3 || kinds[0] != EventCreated || kinds[1] != EventDelivered || kinds[2] != EventResolved {
		t.Fatalf("events = %v", kinds)
	}
}

func TestReadersDoNotShareState(t *testing.T) {
	m, _ := newTestManager()
	a := m.CreateAlert(context.Background(), models.Alert{Component: "system", MetricName: "cpu_percent", Severity: models.SeverityHigh,
		Metadata: map[string]any{"rule": "CPU Monitoring"}})
	a.Metadata["rule"] = "changed"
	got := m.ActiveAlerts()[0]
	if got.Metadata["rule"] != "CPU Monitoring" {
		t.Fatal("caller mutation leaked into the active table")
	}
}
