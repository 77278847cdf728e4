package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"monitord/internal/models"
	"monitord/internal/notifier"
)

// MostRecentLimit bounds the most_recent list in a summary.
const MostRecentLimit = 10

// DefaultHistoryLimit is the history bound a new Manager starts with.
const DefaultHistoryLimit = 1000

// Journal persists alert lifecycle and delivery outcomes. Failures are logged
// and never affect the in-memory state.
type Journal interface {
	RecordAlert(ctx context.Context, a models.Alert) error
	RecordResolution(ctx context.Context, alertID string, at time.Time) error
	RecordDelivery(ctx context.Context, alertID string, res models.DeliveryResult, at time.Time) error
}

type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventResolved
	EventDelivered
)

// Event is passed to subscribers after each alert mutation or delivery.
type Event struct {
	Kind     EventKind
	Alert    models.Alert
	Delivery *models.DeliveryResult
	Active   int
}

// Manager owns the active alert table and the alert history.
type Manager struct {
	log      *slog.Logger
	now      func() time.Time
	channels map[models.Channel]notifier.Channel
	journal  Journal

	// Attempts and Backoff control per-channel retries. Backoff grows
	// linearly with the attempt number.
	Attempts int
	Backoff  time.Duration

	// HistoryLimit bounds the in-memory history; older entries drop off.
	// Zero or less keeps every alert.
	HistoryLimit int

	mu      sync.RWMutex
	active  map[string]models.Alert
	history []models.Alert
	subs    []func(Event)
}

func NewManager(logger *slog.Logger, channels []notifier.Channel, journal Journal) *Manager {
	m := &Manager{
		log:      logger,
		now:      time.Now,
		channels: map[models.Channel]notifier.Channel{},
		journal:  journal,
		Attempts: 3,
		Backoff:  300 * time.Millisecond,

		HistoryLimit: DefaultHistoryLimit,
		active:   map[string]models.Alert{},
	}
	for _, c := range channels {
		m.channels[c.Name()] = c
	}
	return m
}

// Subscribe registers fn for every subsequent Event. fn runs synchronously on
// the goroutine that caused the event and must not block.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

func (m *Manager) publish(ev Event) {
	m.mu.RLock()
	subs := append([]func(Event){}, m.subs...)
	ev.Active = len(m.active)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// CreateAlert assigns an id and timestamp to a, stores it as active and
// appends a copy to history. Any id, timestamp or resolution fields on a are
// overwritten.
func (m *Manager) CreateAlert(ctx context.Context, a models.Alert) models.Alert {
	now := m.now().UTC()
	a.ID = fmt.Sprintf("%s_%s_%d_%s", a.Component, a.MetricName, now.Unix(), uuid.NewString()[:8])
	a.Timestamp = now
	a.Resolved = false
	a.ResolvedAt = nil
	a = a.Clone()

	m.mu.Lock()
	m.active[a.ID] = a
	m.history = append(m.history, a.Clone())
	if limit := m.HistoryLimit; limit > 0 && len(m.history) > limit {
		m.history = append(m.history[:0], m.history[len(m.history)-limit:]...)
	}
	m.mu.Unlock()

	m.log.Info("alert created", "alert_id", a.ID, "severity", a.Severity.String(), "component", a.Component, "metric", a.MetricName, "value", a.CurrentValue)
	if m.journal != nil {
		if err := m.journal.RecordAlert(ctx, a); err != nil {
			m.log.Error("journal alert", "err", err, "alert_id", a.ID)
		}
	}
	m.publish(Event{Kind: EventCreated, Alert: a.Clone()})
	return a.Clone()
}

// ResolveAlert removes an active alert and reports whether it was active.
// History keeps the alert as it was when created.
func (m *Manager) ResolveAlert(ctx context.Context, id string) bool {
	now := m.now().UTC()
	m.mu.Lock()
	a, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	a.Resolved = true
	a.ResolvedAt = &now

	m.log.Info("alert resolved", "alert_id", id)
	if m.journal != nil {
		if err := m.journal.RecordResolution(ctx, id, now); err != nil {
			m.log.Error("journal resolution", "err", err, "alert_id", id)
		}
	}
	m.publish(Event{Kind: EventResolved, Alert: a})
	return true
}

// SendAlert delivers a to every listed channel concurrently. A failing channel
// never prevents delivery on the others. Results follow the order of
// channels with duplicates removed.
func (m *Manager) SendAlert(ctx context.Context, a models.Alert, channels []models.Channel) []models.DeliveryResult {
	seen := map[models.Channel]bool{}
	var targets []models.Channel
	for _, c := range channels {
		if !seen[c] {
			seen[c] = true
			targets = append(targets, c)
		}
	}

	results := make([]models.DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c models.Channel) {
			defer wg.Done()
			results[i] = m.deliver(ctx, a, c)
		}(i, c)
	}
	wg.Wait()

	for _, res := range results {
		switch res.Status {
		case models.DeliveryFailed:
			m.log.Warn("alert delivery failed", "channel", res.Channel.String(), "alert_id", a.ID, "attempts", res.Attempts, "err", res.Error)
		case models.DeliverySkipped:
			m.log.Debug("alert delivery skipped", "channel", res.Channel.String(), "alert_id", a.ID, "reason", res.Error)
		case models.DeliverySent:
			m.log.Info("alert delivered", "channel", res.Channel.String(), "alert_id", a.ID, "attempts", res.Attempts)
		}
		if m.journal != nil {
			if err := m.journal.RecordDelivery(ctx, a.ID, res, m.now().UTC()); err != nil {
				m.log.Error("journal delivery", "err", err, "alert_id", a.ID)
			}
		}
		m.publish(Event{Kind: EventDelivered, Alert: a.Clone(), Delivery: &res})
	}
	return results
}

func (m *Manager) deliver(ctx context.Context, a models.Alert, name models.Channel) (res models.DeliveryResult) {
	res = models.DeliveryResult{Channel: name}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("channel panicked", "channel", name.String(), "panic", r, "stack", string(debug.Stack()))
			res.Status = models.DeliveryFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	ch, ok := m.channels[name]
	if !ok {
		res.Status = models.DeliverySkipped
		res.Error = notifier.ErrNotConfigured.Error()
		return res
	}
	attempts := max(m.Attempts, 1)
	var err error
	for res.Attempts < attempts {
		res.Attempts++
		err = ch.Deliver(ctx, a.Clone())
		if err == nil {
			res.Status = models.DeliverySent
			return res
		}
		if errors.Is(err, notifier.ErrNotConfigured) {
			res.Status = models.DeliverySkipped
			res.Error = err.Error()
			return res
		}
		if res.Attempts < attempts {
			select {
			case <-ctx.Done():
				res.Status = models.DeliveryFailed
				res.Error = ctx.Err().Error()
				return res
			case <-time.After(time.Duration(res.Attempts) * m.Backoff):
			}
		}
	}
	res.Status = models.DeliveryFailed
	res.Error = err.Error()
	return res
}

// Summary is a read-only view of the active alerts.
func (m *Manager) Summary() models.AlertSummary {
	active := m.ActiveAlerts()
	s := models.AlertSummary{
		TotalActive:       len(active),
		CountsBySeverity:  map[string]int{},
		CountsByComponent: map[string]int{},
		GeneratedAt:       m.now().UTC(),
	}
	for _, a := range active {
		s.CountsBySeverity[a.Severity.String()]++
		s.CountsByComponent[a.Component]++
	}
	s.MostRecent = active[:min(len(active), MostRecentLimit)]
	return s
}

// ActiveAlerts returns copies of the active alerts, newest first.
func (m *Manager) ActiveAlerts() []models.Alert {
	m.mu.RLock()
	out := make([]models.Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a.Clone())
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// History returns up to limit history entries, newest first. limit <= 0
// returns everything retained.
func (m *Manager) History(limit int) []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.history[i].Clone())
	}
	return out
}

func sortNewestFirst(as []models.Alert) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Timestamp.Equal(as[j].Timestamp) {
			return as[i].ID > as[j].ID
		}
		return as[i].Timestamp.After(as[j].Timestamp)
	})
}
