package obligation

import (
	"context"
	"time"

	"finance_assistant_bot/internal/domain/ledger"
)

// Repository defines the durable state operations for subscriptions,
// reminders and debts. Charge application and debt settlement pair a ledger
// write with the bookkeeping update in a single storage transaction — the
// two must commit together or not at all.
type Repository interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	ListActiveSubscriptions(ctx context.Context) ([]*Subscription, error)
	DeactivateSubscription(ctx context.Context, id int64) error
	// ApplyCharge writes the charge transaction and advances the
	// subscription's last-charged/next-due bookkeeping atomically. It
	// returns false without writing anything when the due date has already
	// been applied (idempotence key: subscription id + due date).
	ApplyCharge(ctx context.Context, subID int64, dueDate, nextDue time.Time, tx *ledger.Transaction) (bool, error)

	CreateReminder(ctx context.Context, r *Reminder) error
	ListActiveReminders(ctx context.Context) ([]*Reminder, error)
	DeactivateReminder(ctx context.Context, id int64) error
	// MarkReminderFired advances the reminder's bookkeeping after the
	// notification has been delivered. One-shot reminders pass
	// stillActive=false.
	MarkReminderFired(ctx context.Context, id int64, firedOn, nextDue time.Time, stillActive bool) error

	CreateDebt(ctx context.Context, d *Debt) error
	GetDebt(ctx context.Context, id int64) (*Debt, error)
	ListOpenDebts(ctx context.Context) ([]*Debt, error)
	// SettleDebt flips the settled flag and appends the debt-settlement
	// transaction atomically. Returns false when the debt was already
	// settled.
	SettleDebt(ctx context.Context, debtID int64, tx *ledger.Transaction) (bool, error)
}
