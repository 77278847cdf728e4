package db

import (
	"context"
	"time"
)

// SlowQueryThreshold is the mean latency above which a query counts as slow.
const SlowQueryThreshold = time.Second

// SQLiteProbe reports database health for the local sqlite store.
type SQLiteProbe struct {
	repo *Repository
}

func NewSQLiteProbe(repo *Repository) *SQLiteProbe {
	return &SQLiteProbe{repo: repo}
}

func (p *SQLiteProbe) Name() string { return "sqlite" }

func (p *SQLiteProbe) ActiveConnections(ctx context.Context) (float64, error) {
	if err := p.repo.db.PingContext(ctx); err != nil {
		return 0, err
	}
	return float64(p.repo.db.Stats().InUse), nil
}

func (p *SQLiteProbe) SizeMB(ctx context.Context) (float64, error) {
	var pages, pageSize int64
	if err := p.repo.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
		return 0, err
	}
	if err := p.repo.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, err
	}
	return float64(pages*pageSize) / 1024 / 1024, nil
}

func (p *SQLiteProbe) SlowQueries(ctx context.Context) (float64, error) {
	_, slow := p.repo.QueryStats(SlowQueryThreshold)
	return float64(slow), nil
}

// QueryEfficiency is the share of recent queries that finished under the slow
// threshold.
func (p *SQLiteProbe) QueryEfficiency(ctx context.Context) (float64, error) {
	total, slow := p.repo.QueryStats(SlowQueryThreshold)
	if total == 0 {
		return 100, nil
	}
	return float64(total-slow) / float64(total) * 100, nil
}
