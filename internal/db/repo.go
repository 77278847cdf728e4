package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"monitord/internal/models"
)

const queryWindow = 10 * time.Minute

type querySample struct {
	at  time.Time
	dur time.Duration
}

type Repository struct {
	db  *sql.DB
	now func() time.Time

	qmu     sync.Mutex
	queries []querySample
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) DB() *sql.DB { return r.db }

// observe records how long a repository query took so the database probe can
// report slow queries without server-side statement statistics.
func (r *Repository) observe(start time.Time) {
	now := r.now()
	r.qmu.Lock()
	defer r.qmu.Unlock()
	r.queries = append(r.queries, querySample{at: now, dur: now.Sub(start)})
	cut := 0
	for cut < len(r.queries) && now.Sub(r.queries[cut].at) > queryWindow {
		cut++
	}
	if cut > 0 {
		r.queries = append(r.queries[:0], r.queries[cut:]...)
	}
}

// QueryStats counts queries observed in the last ten minutes and how many of
// them ran longer than slow.
func (r *Repository) QueryStats(slow time.Duration) (total, slowCount int) {
	now := r.now()
	r.qmu.Lock()
	defer r.qmu.Unlock()
	for _, q := range r.queries {
		if now.Sub(q.at) > queryWindow {
			continue
		}
		total++
		if q.dur > slow {
			slowCount++
		}
	}
	return total, slowCount
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int64, error) {
	defer r.observe(r.now())
	var n int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (r *Repository) CountActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE last_login >= ?`, since.UTC())
}

func (r *Repository) CountActiveRooms(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM rooms WHERE is_active = 1`)
}

func (r *Repository) CountVideos(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM videos`)
}

func (r *Repository) CountVideosSince(ctx context.Context, since time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM videos WHERE created_at >= ?`, since.UTC())
}

func (r *Repository) RecordAlert(ctx context.Context, a models.Alert) error {
	defer r.observe(r.now())
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO alerts
		(id,title,message,severity,component,metric_name,current_value,threshold_value,created_ts,resolved_ts_nullable,metadata_json)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		a.ID, a.Title, a.Message, a.Severity.String(), a.Component, a.MetricName, a.CurrentValue, a.ThresholdValue,
		a.Timestamp.UTC(), a.ResolvedAt, string(meta))
	return err
}

func (r *Repository) RecordResolution(ctx context.Context, alertID string, at time.Time) error {
	defer r.observe(r.now())
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET resolved_ts_nullable=? WHERE id=? AND resolved_ts_nullable IS NULL`, at.UTC(), alertID)
	return err
}

func (r *Repository) RecordDelivery(ctx context.Context, alertID string, res models.DeliveryResult, at time.Time) error {
	defer r.observe(r.now())
	var lastErr *string
	if res.Error != "" {
		lastErr = &res.Error
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_events (alert_id,channel,status,attempts,last_error,ts) VALUES (?,?,?,?,?,?)`,
		alertID, res.Channel.String(), string(res.Status), res.Attempts, lastErr, at.UTC())
	return err
}

// DeleteOlderThan prunes the alert journal. Unresolved alerts are kept.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.observe(r.now())
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE created_ts < ? AND resolved_ts_nullable IS NOT NULL`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM notification_events WHERE ts < ?`, cutoff.UTC()); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
