package database

import (
	"context"
	"database/sql"
	"fmt"

	"finance_assistant_bot/internal/domain/alert"
)

// Custom errors
var ErrAlertLimitNotFound = fmt.Errorf("alert limit not found")

type PostgresAlertRepository struct {
	db *sql.DB
}

func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

// Upsert replaces the limit for the scope, keeping the existing notification
// marker so changing a threshold cannot re-trigger an alert already sent for
// the current period.
func (r *PostgresAlertRepository) Upsert(ctx context.Context, l *alert.Limit) error {
	query := `INSERT INTO alert_limits (scope, threshold, is_active)
               VALUES ($1, $2, TRUE)
               ON CONFLICT (scope) DO UPDATE SET threshold = EXCLUDED.threshold, is_active = TRUE
               RETURNING id, last_notified_period_key, created_at`

	err := r.db.QueryRowContext(ctx, query, l.Scope, l.Threshold).
		Scan(&l.ID, &l.LastNotifiedPeriod, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("error upserting alert limit: %w", err)
	}
	l.IsActive = true
	return nil
}

func (r *PostgresAlertRepository) ListActive(ctx context.Context) ([]*alert.Limit, error) {
	query := `SELECT id, scope, threshold, last_notified_period_key, is_active, created_at
               FROM alert_limits WHERE is_active = TRUE ORDER BY scope`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active alert limits: %w", err)
	}
	defer rows.Close()

	limits := make([]*alert.Limit, 0)
	for rows.Next() {
		l := &alert.Limit{}
		if err := rows.Scan(&l.ID, &l.Scope, &l.Threshold, &l.LastNotifiedPeriod, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning alert limit: %w", err)
		}
		limits = append(limits, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert limits: %w", err)
	}
	return limits, nil
}

// MarkNotified advances the dedup marker. Period keys within a scope order
// lexicographically by time, so the guard keeps the marker from regressing
// and from being written twice for the same period.
func (r *PostgresAlertRepository) MarkNotified(ctx context.Context, id int64, periodKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_limits
           SET last_notified_period_key = $2
           WHERE id = $1
             AND (last_notified_period_key IS NULL OR last_notified_period_key < $2)`,
		id, periodKey)
	if err != nil {
		return fmt.Errorf("error recording alert notification: %w", err)
	}
	// A zero-row update means the marker is already at or past this period,
	// which is fine for idempotence.
	return nil
}
