package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresProbe reads server statistics from a PostgreSQL instance.
type PostgresProbe struct {
	gdb *gorm.DB
}

func OpenPostgresProbe(dsn string) (*PostgresProbe, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresProbe{gdb: gdb}, nil
}

func (p *PostgresProbe) Name() string { return "postgres" }

func (p *PostgresProbe) Close() error {
	sqlDB, err := p.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresProbe) scalar(ctx context.Context, query string) (float64, error) {
	var v float64
	err := p.gdb.WithContext(ctx).Raw(query).Scan(&v).Error
	return v, err
}

func (p *PostgresProbe) ActiveConnections(ctx context.Context) (float64, error) {
	return p.scalar(ctx, `SELECT COUNT(*) FROM pg_stat_activity WHERE state = 'active'`)
}

func (p *PostgresProbe) SizeMB(ctx context.Context) (float64, error) {
	v, err := p.scalar(ctx, `SELECT pg_database_size(current_database())`)
	return v / 1024 / 1024, err
}

// SlowQueries needs the pg_stat_statements extension.
func (p *PostgresProbe) SlowQueries(ctx context.Context) (float64, error) {
	return p.scalar(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM pg_stat_statements WHERE mean_exec_time > %d`, SlowQueryThreshold.Milliseconds()))
}

// QueryEfficiency is the buffer cache hit ratio of the current database.
func (p *PostgresProbe) QueryEfficiency(ctx context.Context) (float64, error) {
	return p.scalar(ctx, `SELECT COALESCE(100.0 * SUM(blks_hit) / NULLIF(SUM(blks_hit) + SUM(blks_read), 0), 100)
		FROM pg_stat_database WHERE datname = current_database()`)
}
