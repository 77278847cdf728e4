package collector

import (
	"context"
	"log/slog"
)

// Collector gathers a flat metric map for one component domain. Collect never
// fails: a sub-metric that cannot be read is logged and then, depending on the
// domain, either left out of the map or set to a neutral default.
type Collector interface {
	Domain() string
	Collect(ctx context.Context) map[string]float64
}

// guard runs one sub-collection and keeps going when it fails.
func guard(log *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("collect "+what, "err", err)
	}
}
