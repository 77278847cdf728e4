package collector

import (
	"context"
	"log/slog"

	"monitord/internal/models"
)

// DatabaseProbe reads health figures from one database backend.
type DatabaseProbe interface {
	Name() string
	ActiveConnections(ctx context.Context) (float64, error)
	SizeMB(ctx context.Context) (float64, error)
	SlowQueries(ctx context.Context) (float64, error)
	QueryEfficiency(ctx context.Context) (float64, error)
}

type DatabaseCollector struct {
	log   *slog.Logger
	probe DatabaseProbe
}

func NewDatabaseCollector(logger *slog.Logger, probe DatabaseProbe) *DatabaseCollector {
	return &DatabaseCollector{log: logger, probe: probe}
}

func (d *DatabaseCollector) Domain() string { return models.ComponentDatabase }

// Collect queries each figure independently. A failed query leaves its
// neutral value in place: zero for counts, 100 for efficiency.
func (d *DatabaseCollector) Collect(ctx context.Context) map[string]float64 {
	m := map[string]float64{
		"db_connections":   0,
		"db_size_mb":       0,
		"slow_queries":     0,
		"query_efficiency": 100,
	}
	read := func(key string, fn func(context.Context) (float64, error)) {
		guard(d.log.With("probe", d.probe.Name()), key, func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			m[key] = v
			return nil
		})
	}
	read("db_connections", d.probe.ActiveConnections)
	read("db_size_mb", d.probe.SizeMB)
	read("slow_queries", d.probe.SlowQueries)
	read("query_efficiency", d.probe.QueryEfficiency)
	return m
}
