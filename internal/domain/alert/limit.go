package alert

import (
	"context"
	"database/sql"
	"time"
)

// Scope says which aggregate a spending limit is checked against.
type Scope string

const (
	ScopeDaily   Scope = "DAILY"
	ScopeMonthly Scope = "MONTHLY"
)

// Limit is a spending threshold with at most one active row per scope.
// LastNotifiedPeriod dedups notifications: it never regresses and advances
// at most once per period, and only after delivery is confirmed.
// Corresponds to the 'alert_limits' table.
type Limit struct {
	ID                 int64
	Scope              Scope
	Threshold          int64 // minor units
	LastNotifiedPeriod sql.NullString
	IsActive           bool
	CreatedAt          time.Time
}

// Repository defines the durable operations for alert limits.
type Repository interface {
	// Upsert replaces the active limit for the scope.
	Upsert(ctx context.Context, l *Limit) error
	ListActive(ctx context.Context) ([]*Limit, error)
	// MarkNotified advances the limit's last-notified period key. The
	// update is a no-op when periodKey does not sort after the stored key,
	// so the marker can never regress.
	MarkNotified(ctx context.Context, id int64, periodKey string) error
}
