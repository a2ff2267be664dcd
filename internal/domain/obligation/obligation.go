package obligation

import (
	"database/sql"
	"time"
)

// Subscription is a recurring charge on a fixed day of the month. DayOfMonth
// may exceed the length of a given month; the due date clamps to the month's
// last day. Corresponds to the 'subscriptions' table.
type Subscription struct {
	ID              int64
	Name            string
	Amount          int64 // minor units
	CategoryID      int64
	DayOfMonth      int
	NextDueDate     time.Time
	LastChargedDate sql.NullTime
	IsActive        bool
	CreatedAt       time.Time
}

// Reminder is a recurring or one-shot notification. Recurring reminders
// follow the same day-of-month rule as subscriptions; one-shot reminders
// carry an absolute due date and deactivate after firing.
// Corresponds to the 'reminders' table.
type Reminder struct {
	ID            int64
	Message       string
	Amount        sql.NullInt64 // optional estimated amount, minor units
	DayOfMonth    int           // only meaningful when Recurring
	DueDate       time.Time
	Recurring     bool
	LastFiredDate sql.NullTime
	IsActive      bool
	CreatedAt     time.Time
}

// Direction says which way a debt points.
type Direction string

const (
	DirectionOwedToMe Direction = "OWED_TO_ME"
	DirectionOwedByMe Direction = "OWED_BY_ME"
)

// Debt is a pending amount owed to or by the owner. Settling a debt writes a
// debt-settlement transaction and flips Settled in one atomic unit.
// Corresponds to the 'debts' table.
type Debt struct {
	ID           int64
	Counterparty string
	Amount       int64 // minor units
	Direction    Direction
	Settled      bool
	CreatedAt    time.Time
}
