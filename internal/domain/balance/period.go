package balance

import "time"

// Period identifies one cached aggregation window, either a single day or a
// calendar month. Key is the canonical identifier ("2025-02-28" or
// "2025-02"); keys within a scope order lexicographically by time, which the
// alert marker guard relies on. End is exclusive.
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Daily returns the period covering t's civil date.
func Daily(t time.Time) Period {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Period{
		Key:   start.Format("2006-01-02"),
		Start: start,
		End:   start.AddDate(0, 0, 1),
	}
}

// Monthly returns the period covering t's calendar month.
func Monthly(t time.Time) Period {
	y, m, _ := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Key:   start.Format("2006-01"),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// Aggregate holds the derived totals for one period, in minor units.
type Aggregate struct {
	Income  int64
	Expense int64
	Saving  int64
}

// Net is income minus expenses and savings.
func (a Aggregate) Net() int64 {
	return a.Income - a.Expense - a.Saving
}

// PeriodAggregate pairs a period with its totals, for history views.
type PeriodAggregate struct {
	Period    Period
	Aggregate Aggregate
}
