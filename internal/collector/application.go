package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"monitord/internal/models"
)

// APIPerformanceKey is the cache key the HTTP layer publishes request
// statistics under.
const APIPerformanceKey = "api_performance_metrics"

// StatsSource exposes the application's own tables.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	CountActiveRooms(ctx context.Context) (int64, error)
	CountVideos(ctx context.Context) (int64, error)
	CountVideosSince(ctx context.Context, since time.Time) (int64, error)
}

// CacheReader is satisfied by *cache.Cache.
type CacheReader interface {
	Get(key string) (any, bool)
}

type ApplicationCollector struct {
	log   *slog.Logger
	stats StatsSource
	cache CacheReader
	now   func() time.Time
}

func NewApplicationCollector(logger *slog.Logger, stats StatsSource, c CacheReader) *ApplicationCollector {
	return &ApplicationCollector{log: logger, stats: stats, cache: c, now: time.Now}
}

func (a *ApplicationCollector) Domain() string { return models.ComponentApplication }

func (a *ApplicationCollector) Collect(ctx context.Context) map[string]float64 {
	since := a.now().Add(-24 * time.Hour)
	m := map[string]float64{}
	count := func(key string, fn func() (int64, error)) {
		m[key] = 0
		guard(a.log, key, func() error {
			n, err := fn()
			if err != nil {
				return err
			}
			m[key] = float64(n)
			return nil
		})
	}
	count("active_users_24h", func() (int64, error) { return a.stats.CountActiveUsers(ctx, since) })
	count("total_users", func() (int64, error) { return a.stats.CountUsers(ctx) })
	count("active_rooms", func() (int64, error) { return a.stats.CountActiveRooms(ctx) })
	count("videos_created_24h", func() (int64, error) { return a.stats.CountVideosSince(ctx, since) })
	count("total_videos", func() (int64, error) { return a.stats.CountVideos(ctx) })

	for k, v := range a.apiPerformance() {
		m[k] = v
	}
	return m
}

func (a *ApplicationCollector) apiPerformance() map[string]float64 {
	out := map[string]float64{
		"avg_response_time_ms": 0,
		"requests_per_minute":  0,
		"error_rate":           0,
		"cache_hit_rate":       100,
	}
	if a.cache == nil {
		return out
	}
	v, ok := a.cache.Get(APIPerformanceKey)
	if !ok {
		return out
	}
	published, ok := v.(map[string]float64)
	if !ok {
		a.log.Warn("unexpected api performance entry", "type", fmt.Sprintf("%T", v))
		return out
	}
	for k := range out {
		if pv, ok := published[k]; ok {
			out[k] = pv
		}
	}
	return out
}
