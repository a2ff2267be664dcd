package ledger

import "time"

// Kind classifies the direction of a movement of money.
type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
	KindSaving  Kind = "SAVING"
)

// Source records what produced a transaction.
type Source string

const (
	SourceManual         Source = "MANUAL"
	SourceSubscription   Source = "SUBSCRIPTION"
	SourceDebtSettlement Source = "DEBT_SETTLEMENT"
)

// Transaction is a single immutable ledger entry. Amounts are integer minor
// units (cents); the Kind carries the direction. Transactions are the source
// of truth — derived aggregates are always rebuilt from them.
// Corresponds to the 'transactions' table.
type Transaction struct {
	ID          int64
	OccurredOn  time.Time // the civil date the movement belongs to
	Amount      int64
	CategoryID  int64
	Kind        Kind
	Source      Source
	Description string
	CreatedAt   time.Time
}

// Category groups transactions of one kind. (Name, Kind) is unique.
// Corresponds to the 'categories' table.
type Category struct {
	ID        int64
	Name      string
	Kind      Kind
	IsActive  bool
	CreatedAt time.Time
}
