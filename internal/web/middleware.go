package web

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"monitord/internal/cache"
	"monitord/internal/collector"
)

const (
	perfWindow = time.Minute
	perfTTL    = 5 * time.Minute
)

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		logger.Info("http_request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}

type requestSample struct {
	at     time.Time
	dur    time.Duration
	failed bool
}

// perfRecorder keeps a one-minute window of request timings and publishes
// aggregates to the cache for the application collector.
type perfRecorder struct {
	cache *cache.Cache
	now   func() time.Time

	mu      sync.Mutex
	samples []requestSample
}

func newPerfRecorder(c *cache.Cache) *perfRecorder {
	return &perfRecorder{cache: c, now: time.Now}
}

func (p *perfRecorder) middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/ws/") {
			return c.Next()
		}
		start := p.now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		p.record(start, p.now().Sub(start), status >= 500)
		return err
	}
}

func (p *perfRecorder) record(at time.Time, d time.Duration, failed bool) {
	p.mu.Lock()
	p.samples = append(p.samples, requestSample{at: at, dur: d, failed: failed})
	now := p.now()
	cut := 0
	for cut < len(p.samples) && now.Sub(p.samples[cut].at) > perfWindow {
		cut++
	}
	p.samples = append(p.samples[:0], p.samples[cut:]...)

	var total time.Duration
	errs := 0
	for _, s := range p.samples {
		total += s.dur
		if s.failed {
			errs++
		}
	}
	n := len(p.samples)
	p.mu.Unlock()

	stats := map[string]float64{
		"avg_response_time_ms": 0,
		"requests_per_minute":  float64(n),
		"error_rate":           0,
		"cache_hit_rate":       p.cache.HitRate(),
	}
	if n > 0 {
		stats["avg_response_time_ms"] = float64(total.Microseconds()) / 1000 / float64(n)
		stats["error_rate"] = float64(errs) / float64(n) * 100
	}
	p.cache.Set(collector.APIPerformanceKey, stats, perfTTL)
}
