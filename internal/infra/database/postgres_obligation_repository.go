package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finance_assistant_bot/internal/domain/ledger"
	"finance_assistant_bot/internal/domain/obligation"
)

// Custom errors
var ErrSubscriptionNotFound = fmt.Errorf("subscription not found")
var ErrReminderNotFound = fmt.Errorf("reminder not found")
var ErrDebtNotFound = fmt.Errorf("debt not found")

// PostgresObligationRepository persists subscriptions, reminders and debts.
// ApplyCharge and SettleDebt pair the ledger write with the bookkeeping
// update inside one SQL transaction, which is the atomicity unit the tick
// relies on to never double-charge and never lose a charge.
type PostgresObligationRepository struct {
	db *sql.DB
}

func NewPostgresObligationRepository(db *sql.DB) *PostgresObligationRepository {
	return &PostgresObligationRepository{db: db}
}

func (r *PostgresObligationRepository) CreateSubscription(ctx context.Context, s *obligation.Subscription) error {
	query := `INSERT INTO subscriptions (name, amount, category_id, day_of_month, next_due_date, is_active, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		s.Name, s.Amount, s.CategoryID, s.DayOfMonth, s.NextDueDate, s.IsActive, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("error creating subscription: %w", err)
	}
	return nil
}

func (r *PostgresObligationRepository) ListActiveSubscriptions(ctx context.Context) ([]*obligation.Subscription, error) {
	query := `SELECT id, name, amount, category_id, day_of_month, next_due_date, last_charged_date, is_active, created_at
               FROM subscriptions WHERE is_active = TRUE ORDER BY day_of_month, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*obligation.Subscription, 0)
	for rows.Next() {
		s := &obligation.Subscription{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Amount, &s.CategoryID, &s.DayOfMonth,
			&s.NextDueDate, &s.LastChargedDate, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}

func (r *PostgresObligationRepository) DeactivateSubscription(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deactivating subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ApplyCharge advances the subscription's bookkeeping and writes the charge
// transaction in one unit. The WHERE guard makes the operation idempotent
// per (subscription, due date): a due date at or before last_charged_date
// commits nothing and reports false.
func (r *PostgresObligationRepository) ApplyCharge(ctx context.Context, subID int64, dueDate, nextDue time.Time, t *ledger.Transaction) (applied bool, err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting charge transaction: %w", err)
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	res, err := sqlTx.ExecContext(ctx,
		`UPDATE subscriptions
           SET last_charged_date = $2, next_due_date = $3
           WHERE id = $1 AND is_active = TRUE
             AND (last_charged_date IS NULL OR last_charged_date < $2)`,
		subID, dueDate, nextDue)
	if err != nil {
		return false, fmt.Errorf("error advancing subscription bookkeeping: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sqlTx.Rollback()
		return false, nil
	}

	err = sqlTx.QueryRowContext(ctx,
		`INSERT INTO transactions (occurred_on, amount, category_id, kind, source, description)
           VALUES ($1, $2, $3, $4, $5, $6)
           RETURNING id, created_at`,
		t.OccurredOn, t.Amount, t.CategoryID, t.Kind, t.Source, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("error writing charge transaction: %w", err)
	}

	if err = sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("error committing charge: %w", err)
	}
	return true, nil
}

func (r *PostgresObligationRepository) CreateReminder(ctx context.Context, rem *obligation.Reminder) error {
	query := `INSERT INTO reminders (message, amount, day_of_month, due_date, recurring, is_active, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		rem.Message, rem.Amount, rem.DayOfMonth, rem.DueDate, rem.Recurring, rem.IsActive, rem.CreatedAt,
	).Scan(&rem.ID)
	if err != nil {
		return fmt.Errorf("error creating reminder: %w", err)
	}
	return nil
}

func (r *PostgresObligationRepository) ListActiveReminders(ctx context.Context) ([]*obligation.Reminder, error) {
	query := `SELECT id, message, amount, day_of_month, due_date, recurring, last_fired_date, is_active, created_at
               FROM reminders WHERE is_active = TRUE ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active reminders: %w", err)
	}
	defer rows.Close()

	rems := make([]*obligation.Reminder, 0)
	for rows.Next() {
		rem := &obligation.Reminder{}
		if err := rows.Scan(&rem.ID, &rem.Message, &rem.Amount, &rem.DayOfMonth,
			&rem.DueDate, &rem.Recurring, &rem.LastFiredDate, &rem.IsActive, &rem.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder: %w", err)
		}
		rems = append(rems, rem)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}
	return rems, nil
}

func (r *PostgresObligationRepository) DeactivateReminder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deactivating reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// MarkReminderFired advances the reminder's bookkeeping. The WHERE guard
// makes a repeated call for an already-recorded firing a no-op.
func (r *PostgresObligationRepository) MarkReminderFired(ctx context.Context, id int64, firedOn, nextDue time.Time, stillActive bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders
           SET last_fired_date = $2, due_date = $3, is_active = $4
           WHERE id = $1 AND (last_fired_date IS NULL OR last_fired_date < $2)`,
		id, firedOn, nextDue, stillActive)
	if err != nil {
		return fmt.Errorf("error marking reminder fired: %w", err)
	}
	return nil
}

func (r *PostgresObligationRepository) CreateDebt(ctx context.Context, d *obligation.Debt) error {
	query := `INSERT INTO debts (counterparty, amount, direction, settled, created_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		d.Counterparty, d.Amount, d.Direction, d.Settled, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("error creating debt: %w", err)
	}
	return nil
}

func (r *PostgresObligationRepository) GetDebt(ctx context.Context, id int64) (*obligation.Debt, error) {
	query := `SELECT id, counterparty, amount, direction, settled, created_at FROM debts WHERE id = $1`
	d := &obligation.Debt{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Counterparty, &d.Amount, &d.Direction, &d.Settled, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDebtNotFound
		}
		return nil, fmt.Errorf("error getting debt by ID: %w", err)
	}
	return d, nil
}

func (r *PostgresObligationRepository) ListOpenDebts(ctx context.Context) ([]*obligation.Debt, error) {
	query := `SELECT id, counterparty, amount, direction, settled, created_at
               FROM debts WHERE settled = FALSE ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing open debts: %w", err)
	}
	defer rows.Close()

	debts := make([]*obligation.Debt, 0)
	for rows.Next() {
		d := &obligation.Debt{}
		if err := rows.Scan(&d.ID, &d.Counterparty, &d.Amount, &d.Direction, &d.Settled, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning debt: %w", err)
		}
		debts = append(debts, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debts: %w", err)
	}
	return debts, nil
}

// SettleDebt flips the settled flag and writes the settlement transaction
// atomically. Reports false when the debt was already settled.
func (r *PostgresObligationRepository) SettleDebt(ctx context.Context, debtID int64, t *ledger.Transaction) (settled bool, err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting settlement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	res, err := sqlTx.ExecContext(ctx,
		`UPDATE debts SET settled = TRUE WHERE id = $1 AND settled = FALSE`, debtID)
	if err != nil {
		return false, fmt.Errorf("error marking debt settled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		sqlTx.Rollback()
		return false, nil
	}

	err = sqlTx.QueryRowContext(ctx,
		`INSERT INTO transactions (occurred_on, amount, category_id, kind, source, description)
           VALUES ($1, $2, $3, $4, $5, $6)
           RETURNING id, created_at`,
		t.OccurredOn, t.Amount, t.CategoryID, t.Kind, t.Source, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("error writing settlement transaction: %w", err)
	}

	if err = sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("error committing settlement: %w", err)
	}
	return true, nil
}
