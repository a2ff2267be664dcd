package alert

import (
	"context"
	"fmt"
	"time"

	"finance_assistant_bot/internal/domain/balance"
)

// Intent is a notification the evaluator decided must fire. The caller is
// responsible for delivering it and, on confirmed delivery, advancing the
// limit's marker via Repository.MarkNotified.
type Intent struct {
	Limit  *Limit
	Period balance.Period
	Spent  int64
}

// Evaluator compares cached aggregates against the configured limits.
type Evaluator struct {
	limits   Repository
	balances *balance.Cache
}

func NewEvaluator(limits Repository, balances *balance.Cache) *Evaluator {
	return &Evaluator{limits: limits, balances: balances}
}

// Evaluate returns one intent per active limit whose period expense has
// crossed the threshold and has not been notified for the current period
// yet. Re-crossing within the same period produces nothing; a new period
// starts fresh.
func (e *Evaluator) Evaluate(ctx context.Context, today time.Time) ([]Intent, error) {
	limits, err := e.limits.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active alert limits: %w", err)
	}

	var intents []Intent
	for _, l := range limits {
		var period balance.Period
		switch l.Scope {
		case ScopeDaily:
			period = balance.Daily(today)
		case ScopeMonthly:
			period = balance.Monthly(today)
		default:
			return nil, fmt.Errorf("alert limit %d has unknown scope %q", l.ID, l.Scope)
		}

		agg, err := e.balances.Get(ctx, period)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s limit %d: %w", l.Scope, l.ID, err)
		}
		if agg.Expense < l.Threshold {
			continue
		}
		if l.LastNotifiedPeriod.Valid && l.LastNotifiedPeriod.String == period.Key {
			continue
		}
		intents = append(intents, Intent{Limit: l, Period: period, Spent: agg.Expense})
	}
	return intents, nil
}
