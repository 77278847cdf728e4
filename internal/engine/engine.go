package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"monitord/internal/alerts"
	"monitord/internal/cache"
	"monitord/internal/collector"
	"monitord/internal/models"
	"monitord/internal/rules"
)

var (
	ErrAlreadyRunning = errors.New("monitoring engine already running")
	ErrNotRunning     = errors.New("monitoring engine not running")
)

const (
	// SnapshotKey holds the latest snapshot in the shared cache.
	SnapshotKey = "monitoring:latest_metrics"

	DefaultInterval    = 60 * time.Second
	DefaultSnapshotTTL = 5 * time.Minute
)

// RestartPause is how long Restart waits between stopping and starting.
var RestartPause = time.Second

// Observer receives per-cycle measurements.
type Observer interface {
	SnapshotCollected(s models.Snapshot)
	CycleFinished(d time.Duration, err error)
}

type Status struct {
	Running             bool       `json:"running"`
	IntervalSeconds     float64    `json:"interval_seconds"`
	Cycles              uint64     `json:"cycles"`
	LastCycleAt         *time.Time `json:"last_cycle_at"`
	LastCycleDurationMS float64    `json:"last_cycle_duration_ms"`
	LastError           string     `json:"last_error,omitempty"`
	ActiveAlerts        int        `json:"active_alerts"`
}

type Engine struct {
	log         *slog.Logger
	collectors  []collector.Collector
	rules       *rules.Set
	evaluator   *alerts.Evaluator
	alerts      *alerts.Manager
	cache       *cache.Cache
	observer    Observer
	snapshotTTL time.Duration
	now         func() time.Time

	mu        sync.Mutex
	running   bool
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
	cycles    uint64
	lastAt    time.Time
	lastDur   time.Duration
	lastError string
}

type Options struct {
	Collectors  []collector.Collector
	Rules       *rules.Set
	Alerts      *alerts.Manager
	Cache       *cache.Cache
	Observer    Observer
	SnapshotTTL time.Duration
}

func New(opts Options, logger *slog.Logger) *Engine {
	ttl := opts.SnapshotTTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Engine{
		log:         logger,
		collectors:  opts.Collectors,
		rules:       opts.Rules,
		evaluator:   alerts.NewEvaluator(opts.Rules, opts.Alerts, opts.Cache, logger),
		alerts:      opts.Alerts,
		cache:       opts.Cache,
		observer:    opts.Observer,
		snapshotTTL: ttl,
		now:         time.Now,
		interval:    DefaultInterval,
	}
}

// Start runs the collect, evaluate and sleep loop on the calling goroutine
// until Stop is called or ctx ends. It returns ErrAlreadyRunning when a loop
// is active.
func (e *Engine) Start(ctx context.Context, interval time.Duration) error {
	run, err := e.begin(interval)
	if err != nil {
		return err
	}
	run(ctx)
	return nil
}

// Launch is Start on a new goroutine. The running check happens before it
// returns.
func (e *Engine) Launch(ctx context.Context, interval time.Duration) error {
	run, err := e.begin(interval)
	if err != nil {
		return err
	}
	go run(ctx)
	return nil
}

func (e *Engine) begin(interval time.Duration) (func(context.Context), error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, ErrAlreadyRunning
	}
	prev := e.done
	stop := make(chan struct{})
	done := make(chan struct{})
	e.running = true
	e.interval = interval
	e.stop = stop
	e.done = done

	return func(ctx context.Context) {
		defer close(done)
		defer func() {
			e.mu.Lock()
			if e.stop == stop {
				e.running = false
			}
			e.mu.Unlock()
		}()
		// A stopped loop may still be finishing its last cycle.
		if prev != nil {
			select {
			case <-prev:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
		e.loop(ctx, interval, stop)
	}, nil
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}) {
	e.log.Info("monitoring started", "interval", interval.String())
	defer e.log.Info("monitoring stopped")
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		_ = e.RunCycle(ctx)

		timer.Reset(interval)
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Stop ends the loop after the cycle in flight, if any, completes.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	e.running = false
	close(e.stop)
	return nil
}

// Restart stops a running loop, waits up to one interval for it to exit,
// pauses and launches a new loop with interval.
func (e *Engine) Restart(ctx context.Context, interval time.Duration) error {
	e.mu.Lock()
	done := e.done
	wait := e.interval
	e.mu.Unlock()

	if err := e.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(wait):
			e.log.Warn("previous monitoring loop still finishing a cycle")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-time.After(RestartPause):
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.Launch(ctx, interval)
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	s := Status{
		Running:             e.running,
		IntervalSeconds:     e.interval.Seconds(),
		Cycles:              e.cycles,
		LastCycleDurationMS: float64(e.lastDur.Microseconds()) / 1000,
		LastError:           e.lastError,
	}
	if !e.lastAt.IsZero() {
		at := e.lastAt
		s.LastCycleAt = &at
	}
	e.mu.Unlock()
	s.ActiveAlerts = len(e.alerts.ActiveAlerts())
	return s
}

// RunCycle collects a snapshot and evaluates it. A panic anywhere in the cycle
// is recovered and returned as an error.
func (e *Engine) RunCycle(ctx context.Context) (err error) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitoring cycle panicked: %v", r)
			e.log.Error("monitoring cycle failed", "err", err, "stack", string(debug.Stack()))
		}
		d := e.now().Sub(start)
		e.mu.Lock()
		e.cycles++
		e.lastAt = start.UTC()
		e.lastDur = d
		e.lastError = ""
		if err != nil {
			e.lastError = err.Error()
		}
		e.mu.Unlock()
		if e.observer != nil {
			e.observer.CycleFinished(d, err)
		}
	}()

	snap := e.CollectAllMetrics(ctx)
	created := e.evaluator.CheckThresholds(ctx, snap)
	e.log.Debug("monitoring cycle complete", "alerts_created", len(created))
	return nil
}

// CollectAllMetrics runs every collector concurrently and caches the result.
// A collector that panics contributes an empty domain.
func (e *Engine) CollectAllMetrics(ctx context.Context) models.Snapshot {
	results := make([]map[string]float64, len(e.collectors))
	var wg sync.WaitGroup
	for i, c := range e.collectors {
		wg.Add(1)
		go func(i int, c collector.Collector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("collector failed", "domain", c.Domain(), "err", fmt.Sprint(r), "stack", string(debug.Stack()))
				}
			}()
			results[i] = c.Collect(ctx)
		}(i, c)
	}
	wg.Wait()

	snap := models.Snapshot{}
	for i, c := range e.collectors {
		if results[i] == nil {
			results[i] = map[string]float64{}
		}
		snap[c.Domain()] = results[i]
	}
	e.cache.Set(SnapshotKey, snap.Clone(), e.snapshotTTL)
	if e.observer != nil {
		e.observer.SnapshotCollected(snap.Clone())
	}
	return snap
}

// LatestSnapshot returns the cached snapshot, collecting one when the cache is
// empty or expired.
func (e *Engine) LatestSnapshot(ctx context.Context) models.Snapshot {
	if v, ok := e.cache.Get(SnapshotKey); ok {
		if snap, ok := v.(models.Snapshot); ok {
			return snap.Clone()
		}
	}
	return e.CollectAllMetrics(ctx)
}

func (e *Engine) Rules() []models.MonitoringRule { return e.rules.Rules() }

func (e *Engine) SetRuleEnabled(name string, enabled bool) error {
	return e.rules.SetEnabled(name, enabled)
}

func (e *Engine) Summary() models.AlertSummary { return e.alerts.Summary() }

func (e *Engine) History(limit int) []models.Alert { return e.alerts.History(limit) }

func (e *Engine) ResolveAlert(ctx context.Context, id string) bool {
	return e.alerts.ResolveAlert(ctx, id)
}

// SendTestAlert pushes a synthetic alert through channels without touching
// the active table or cooldowns.
func (e *Engine) SendTestAlert(ctx context.Context, channels []models.Channel, sev models.Severity) (models.Alert, []models.DeliveryResult) {
	if sev == 0 {
		sev = models.SeverityLow
	}
	if len(channels) == 0 {
		channels = models.AllChannels
	}
	now := e.now().UTC()
	a := models.Alert{
		ID:             fmt.Sprintf("test_%d", now.Unix()),
		Title:          "Test Alert",
		Message:        "This is a test alert from the monitoring engine",
		Severity:       sev,
		Component:      "test",
		MetricName:     "test_metric",
		CurrentValue:   100,
		ThresholdValue: 90,
		Timestamp:      now,
		Metadata:       map[string]any{"test": true},
	}
	return a, e.alerts.SendAlert(ctx, a, channels)
}
