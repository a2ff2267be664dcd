package database

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (name, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		occurred_on DATE NOT NULL,
		amount BIGINT NOT NULL,
		category_id BIGINT NOT NULL REFERENCES categories (id),
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_occurred_on ON transactions (occurred_on)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		amount BIGINT NOT NULL,
		category_id BIGINT NOT NULL REFERENCES categories (id),
		day_of_month INT NOT NULL,
		next_due_date DATE NOT NULL,
		last_charged_date DATE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id BIGSERIAL PRIMARY KEY,
		message TEXT NOT NULL,
		amount BIGINT,
		day_of_month INT NOT NULL DEFAULT 0,
		due_date DATE NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		last_fired_date DATE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS debts (
		id BIGSERIAL PRIMARY KEY,
		counterparty TEXT NOT NULL,
		amount BIGINT NOT NULL,
		direction TEXT NOT NULL,
		settled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS alert_limits (
		id BIGSERIAL PRIMARY KEY,
		scope TEXT NOT NULL UNIQUE,
		threshold BIGINT NOT NULL,
		last_notified_period_key TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate brings the schema up to date. Statements are idempotent, so
// running on every startup is safe.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
	}
	return nil
}
