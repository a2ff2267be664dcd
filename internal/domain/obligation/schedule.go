package obligation

import (
	"database/sql"
	"fmt"
	"time"
)

// ErrInvalidDayOfMonth marks a recurrence rule outside 1..31. Obligations
// carrying one are skipped and deactivated rather than aborting the tick.
var ErrInvalidDayOfMonth = fmt.Errorf("day of month must be between 1 and 31")

// Date normalizes t to midnight UTC. All due-date bookkeeping works on civil
// dates, never clock times.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDay resolves a day-of-month rule within a given month, clamping days
// past the month's end to its last day. Day 31 resolves to Feb 28 (29 in
// leap years), never rolling into March.
func DueDay(year int, month time.Month, day int) time.Time {
	if max := daysIn(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FirstDueDate computes the earliest due date on or after createdAt for a
// day-of-month rule: this month if the clamped day has not passed yet,
// otherwise next month.
func FirstDueDate(createdAt time.Time, day int) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, ErrInvalidDayOfMonth
	}
	created := Date(createdAt)
	due := DueDay(created.Year(), created.Month(), day)
	if due.Before(created) {
		due = NextDueDate(due, day)
	}
	return due, nil
}

// NextDueDate computes the due date in the month following `after`.
func NextDueDate(after time.Time, day int) time.Time {
	a := Date(after)
	// First of the month after `after`; clamping happens against that month.
	next := time.Date(a.Year(), a.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return DueDay(next.Year(), next.Month(), day)
}

// ElapsedDueDates returns every due date that has elapsed up to and
// including today and has not been applied yet, ascending. When the process
// was down over several periods this yields one entry per missed period, so
// catch-up charges each of them exactly once.
func ElapsedDueDates(day int, createdAt time.Time, lastApplied sql.NullTime, today time.Time) ([]time.Time, error) {
	if day < 1 || day > 31 {
		return nil, ErrInvalidDayOfMonth
	}
	var due time.Time
	if lastApplied.Valid {
		due = NextDueDate(lastApplied.Time, day)
	} else {
		var err error
		due, err = FirstDueDate(createdAt, day)
		if err != nil {
			return nil, err
		}
	}
	end := Date(today)
	var elapsed []time.Time
	for !due.After(end) {
		elapsed = append(elapsed, due)
		due = NextDueDate(due, day)
	}
	return elapsed, nil
}

// DueDates evaluates a subscription against today. A nil result means no
// action.
func (s *Subscription) DueDates(today time.Time) ([]time.Time, error) {
	if !s.IsActive {
		return nil, nil
	}
	return ElapsedDueDates(s.DayOfMonth, s.CreatedAt, s.LastChargedDate, today)
}

// DueDates evaluates a reminder against today. Recurring reminders share the
// subscription clamping rule; one-shot reminders are due once their absolute
// date arrives and produce at most one entry.
func (r *Reminder) DueDates(today time.Time) ([]time.Time, error) {
	if !r.IsActive {
		return nil, nil
	}
	if r.Recurring {
		return ElapsedDueDates(r.DayOfMonth, r.CreatedAt, r.LastFiredDate, today)
	}
	if r.LastFiredDate.Valid || Date(r.DueDate).After(Date(today)) {
		return nil, nil
	}
	return []time.Time{Date(r.DueDate)}, nil
}
