package retention

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes journal rows older than cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper drops expired cache entries.
type Sweeper interface {
	Sweep() int
}

type Service struct {
	pruner        Pruner
	cache         Sweeper
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

func NewService(pruner Pruner, cache Sweeper, days int, logger *slog.Logger) *Service {
	if days <= 0 {
		days = 14
	}
	return &Service{pruner: pruner, cache: cache, retentionDays: days, log: logger, now: time.Now}
}

func (s *Service) Run(ctx context.Context) {
	if s.cache != nil {
		if n := s.cache.Sweep(); n > 0 {
			s.log.Debug("expired cache entries dropped", "count", n)
		}
	}
	if s.pruner == nil {
		return
	}
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("retention cleanup failed", "err", err)
		return
	}
	s.log.Info("retention cleanup completed", "cutoff", cutoff, "alerts_deleted", n)
}
