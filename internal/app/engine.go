package app

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"finance_assistant_bot/internal/domain/alert"
	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/domain/ledger"
	"finance_assistant_bot/internal/domain/notify"
	"finance_assistant_bot/internal/domain/obligation"
	idb "finance_assistant_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrClockRegression is fatal to a tick: the injected date is earlier than
// the last processed tick date, and running backwards would risk
// reprocessing settled obligations.
var ErrClockRegression = errors.New("clock regression detected")

// tickPhase names the task runner's state machine states for log context.
type tickPhase string

const (
	phaseTicking      tickPhase = "TICKING"
	phaseApplying     tickPhase = "APPLYING"
	phaseInvalidating tickPhase = "INVALIDATING"
	phaseAlerting     tickPhase = "ALERTING"
)

// TickRunner is the surface the periodic driver invokes.
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) error
}

// Engine is the recurring obligation and balance-cache engine: one RunTick
// call walks every active obligation, applies due charges exactly once,
// keeps the balance cache consistent and evaluates spending alerts.
type Engine struct {
	ledger       ledger.Repository
	obligations  obligation.Repository
	alerts       alert.Repository
	balances     *balance.Cache
	evaluator    *alert.Evaluator
	notifier     notify.Notifier
	clock        Clock
	log          *logrus.Logger
	storeTimeout time.Duration
	storeRetries int

	mu          sync.Mutex // no two ticks overlap
	lastTick    time.Time
	lastSummary string // month key of the last summary sent
}

func NewEngine(
	ledgerRepo ledger.Repository,
	obligationRepo obligation.Repository,
	alertRepo alert.Repository,
	balances *balance.Cache,
	notifier notify.Notifier,
	clock Clock,
	log *logrus.Logger,
	storeTimeout time.Duration,
	storeRetries int,
) *Engine {
	return &Engine{
		ledger:       ledgerRepo,
		obligations:  obligationRepo,
		alerts:       alertRepo,
		balances:     balances,
		evaluator:    alert.NewEvaluator(alertRepo, balances),
		notifier:     notifier,
		clock:        clock,
		log:          log,
		storeTimeout: storeTimeout,
		storeRetries: storeRetries,
	}
}

// RunTick executes one full Ticking→Alerting cycle for the given date. It is
// idempotent: a second call for the same date finds nothing newly due. A
// tick that finds nothing due is still a full traversal. Only fatal-to-tick
// conditions return an error; recoverable failures are summarized in a
// single notice and retried naturally on the next tick.
func (e *Engine) RunTick(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := obligation.Date(now)
	if !e.lastTick.IsZero() && today.Before(e.lastTick) {
		return fmt.Errorf("%w: tick requested for %s but last tick ran for %s",
			ErrClockRegression, today.Format("2006-01-02"), e.lastTick.Format("2006-01-02"))
	}

	t := &tickRun{
		engine:  e,
		today:   today,
		touched: make(map[string]time.Time),
		log: e.log.WithFields(logrus.Fields{
			"tick_id": uuid.NewString(),
			"date":    today.Format("2006-01-02"),
		}),
	}

	t.log.WithField("phase", phaseTicking).Info("Tick started")
	t.processSubscriptions(ctx)
	t.processReminders(ctx)
	if err := ctx.Err(); err != nil {
		t.log.Warnf("Tick aborted between obligations: %v", err)
		return nil
	}

	t.log.WithField("phase", phaseInvalidating).Debugf("Invalidating %d touched dates", len(t.touched))
	for _, d := range t.touched {
		e.balances.InvalidateDate(d)
	}

	t.log.WithField("phase", phaseAlerting).Debug("Evaluating alert limits")
	t.evaluateAlerts(ctx)
	t.sendMonthlySummary(ctx)
	t.flushNotices()

	e.lastTick = today
	t.log.WithFields(logrus.Fields{
		"charged": t.charged,
		"fired":   t.fired,
		"notices": len(t.notices),
	}).Info("Tick completed")
	return nil
}

// GetBalance returns the aggregate for a period via the balance cache.
func (e *Engine) GetBalance(ctx context.Context, p balance.Period) (balance.Aggregate, error) {
	return e.balances.Get(ctx, p)
}

// GetHistory returns aggregates for the last n month-periods, oldest first.
// Months without transactions appear as zero aggregates.
func (e *Engine) GetHistory(ctx context.Context, n int) ([]balance.PeriodAggregate, error) {
	return e.balances.History(ctx, e.clock.Today(), n)
}

// withStore runs one store operation under a bounded timeout, retrying
// transient failures a small bounded number of times. An exhausted retry
// budget abandons the step; the next scheduled tick retries naturally.
func (e *Engine) withStore(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= e.storeRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		err = op(opCtx)
		cancel()
		if err == nil || !isTransientStoreErr(err) {
			return err
		}
	}
	return err
}

func isTransientStoreErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}

// tickRun carries the state of one RunTick execution.
type tickRun struct {
	engine  *Engine
	today   time.Time
	log     *logrus.Entry
	touched map[string]time.Time // dates whose cache periods need invalidation
	notices []string
	charged int
	fired   int
}

func (t *tickRun) notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log.Warn(msg)
	t.notices = append(t.notices, msg)
}

func (t *tickRun) processSubscriptions(ctx context.Context) {
	e := t.engine
	var subs []*obligation.Subscription
	err := e.withStore(ctx, func(c context.Context) error {
		var err error
		subs, err = e.obligations.ListActiveSubscriptions(c)
		return err
	})
	if err != nil {
		t.notice("listing active subscriptions failed, will retry next tick: %v", err)
		return
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		t.applySubscription(ctx, sub)
	}
}

// applySubscription charges every elapsed due date of one subscription, each
// as its own atomic ledger-write-plus-bookkeeping unit.
func (t *tickRun) applySubscription(ctx context.Context, sub *obligation.Subscription) {
	e := t.engine
	log := t.log.WithFields(logrus.Fields{"phase": phaseApplying, "subscription_id": sub.ID})

	dues, err := sub.DueDates(t.today)
	if errors.Is(err, obligation.ErrInvalidDayOfMonth) {
		t.deactivateSubscription(ctx, sub, fmt.Sprintf("invalid charge day %d", sub.DayOfMonth))
		return
	}
	if err != nil {
		t.notice("subscription %q (id %d): due-date evaluation failed: %v", sub.Name, sub.ID, err)
		return
	}
	if len(dues) == 0 {
		return
	}

	var cat *ledger.Category
	err = e.withStore(ctx, func(c context.Context) error {
		var err error
		cat, err = e.ledger.GetCategory(c, sub.CategoryID)
		return err
	})
	if errors.Is(err, idb.ErrCategoryNotFound) {
		t.deactivateSubscription(ctx, sub, fmt.Sprintf("category %d does not exist", sub.CategoryID))
		return
	}
	if err != nil {
		t.notice("subscription %q (id %d): category lookup failed: %v", sub.Name, sub.ID, err)
		return
	}
	if !cat.IsActive || cat.Kind != ledger.KindExpense {
		t.deactivateSubscription(ctx, sub, fmt.Sprintf("category %q is inactive or not an expense category", cat.Name))
		return
	}

	for _, due := range dues {
		if ctx.Err() != nil {
			return
		}
		tx := &ledger.Transaction{
			OccurredOn:  due,
			Amount:      sub.Amount,
			CategoryID:  sub.CategoryID,
			Kind:        ledger.KindExpense,
			Source:      ledger.SourceSubscription,
			Description: "Subscription: " + sub.Name,
		}
		next := obligation.NextDueDate(due, sub.DayOfMonth)

		var applied bool
		err := e.withStore(ctx, func(c context.Context) error {
			var err error
			applied, err = e.obligations.ApplyCharge(c, sub.ID, due, next, tx)
			return err
		})
		if err != nil {
			// Later due dates must not commit ahead of an earlier one, so
			// stop here; the whole remainder stays due for the next tick.
			t.notice("subscription %q (id %d): charge for %s abandoned: %v",
				sub.Name, sub.ID, due.Format("2006-01-02"), err)
			return
		}
		if !applied {
			log.Debugf("Charge for %s already applied, skipping", due.Format("2006-01-02"))
			continue
		}

		t.charged++
		t.touched[due.Format("2006-01-02")] = due
		log.WithField("due_date", due.Format("2006-01-02")).Infof("Charged %s for %q", formatAmount(sub.Amount), sub.Name)

		msg := fmt.Sprintf("📄 Subscription charged\n\n💳 %s\n💰 %s\n🏷️ %s\n📅 %s",
			sub.Name, formatAmount(sub.Amount), cat.Name, due.Format("2006-01-02"))
		if err := e.notifier.Send(msg); err != nil {
			log.Errorf("Failed to deliver charge notification for %q: %v", sub.Name, err)
		}
	}
}

func (t *tickRun) deactivateSubscription(ctx context.Context, sub *obligation.Subscription, reason string) {
	e := t.engine
	t.notice("subscription %q (id %d) deactivated: %s", sub.Name, sub.ID, reason)
	if err := e.withStore(ctx, func(c context.Context) error {
		return e.obligations.DeactivateSubscription(c, sub.ID)
	}); err != nil {
		t.log.Errorf("Failed to deactivate subscription %d: %v", sub.ID, err)
	}
}

func (t *tickRun) processReminders(ctx context.Context) {
	e := t.engine
	var rems []*obligation.Reminder
	err := e.withStore(ctx, func(c context.Context) error {
		var err error
		rems, err = e.obligations.ListActiveReminders(c)
		return err
	})
	if err != nil {
		t.notice("listing active reminders failed, will retry next tick: %v", err)
		return
	}

	for _, rem := range rems {
		if ctx.Err() != nil {
			return
		}
		t.fireReminder(ctx, rem)
	}
}

// fireReminder delivers a due reminder. Reminders never write to the ledger;
// several missed periods collapse into one message, and bookkeeping advances
// to the latest elapsed due date only after delivery succeeds.
func (t *tickRun) fireReminder(ctx context.Context, rem *obligation.Reminder) {
	e := t.engine

	dues, err := rem.DueDates(t.today)
	if errors.Is(err, obligation.ErrInvalidDayOfMonth) {
		t.notice("reminder %d deactivated: invalid day of month %d", rem.ID, rem.DayOfMonth)
		if err := e.withStore(ctx, func(c context.Context) error {
			return e.obligations.DeactivateReminder(c, rem.ID)
		}); err != nil {
			t.log.Errorf("Failed to deactivate reminder %d: %v", rem.ID, err)
		}
		return
	}
	if err != nil {
		t.notice("reminder %d: due-date evaluation failed: %v", rem.ID, err)
		return
	}
	if len(dues) == 0 {
		return
	}
	latest := dues[len(dues)-1]

	msg := "🔔 Reminder\n\n" + rem.Message
	if rem.Amount.Valid {
		msg += "\n💰 Estimated amount: " + formatAmount(rem.Amount.Int64)
	}
	if err := e.notifier.Send(msg); err != nil {
		t.notice("reminder %d: delivery failed, will retry next tick: %v", rem.ID, err)
		return
	}

	next := latest
	if rem.Recurring {
		next = obligation.NextDueDate(latest, rem.DayOfMonth)
	}
	if err := e.withStore(ctx, func(c context.Context) error {
		return e.obligations.MarkReminderFired(c, rem.ID, latest, next, rem.Recurring)
	}); err != nil {
		t.log.Errorf("Failed to mark reminder %d fired: %v", rem.ID, err)
		return
	}
	t.fired++
}

// evaluateAlerts sends due alert intents and advances each limit's dedup
// marker only after the notifier confirms delivery, so a failed delivery is
// retried while the period is still current.
func (t *tickRun) evaluateAlerts(ctx context.Context) {
	e := t.engine

	intents, err := e.evaluator.Evaluate(ctx, t.today)
	if err != nil {
		t.notice("alert evaluation failed, will retry next tick: %v", err)
		return
	}

	for _, in := range intents {
		scope := "today"
		if in.Limit.Scope == alert.ScopeMonthly {
			scope = "this month"
		}
		msg := fmt.Sprintf("🚨 Spending alert\n\nYou have spent %s %s, reaching your limit of %s.",
			formatAmount(in.Spent), scope, formatAmount(in.Limit.Threshold))
		if err := e.notifier.Send(msg); err != nil {
			t.notice("alert for %s limit: delivery failed, will retry next tick: %v", in.Limit.Scope, err)
			continue
		}
		if err := e.withStore(ctx, func(c context.Context) error {
			return e.alerts.MarkNotified(c, in.Limit.ID, in.Period.Key)
		}); err != nil {
			t.notice("alert for %s limit: could not record notification marker: %v", in.Limit.Scope, err)
		}
	}
}

// sendMonthlySummary delivers last month's totals on the first tick of a new
// month.
func (t *tickRun) sendMonthlySummary(ctx context.Context) {
	e := t.engine
	if t.today.Day() != 1 {
		return
	}
	prev := balance.Monthly(t.today.AddDate(0, -1, 0))
	if e.lastSummary == prev.Key {
		return
	}

	agg, err := e.balances.Get(ctx, prev)
	if err != nil {
		t.notice("monthly summary for %s: aggregation failed: %v", prev.Key, err)
		return
	}
	msg := fmt.Sprintf("📊 Monthly summary %s\n\n💵 Income: %s\n💸 Expenses: %s\n💳 Savings: %s\n\n💰 Net: %s",
		prev.Key, formatAmount(agg.Income), formatAmount(agg.Expense),
		formatAmount(agg.Saving), formatAmount(agg.Net()))
	if err := e.notifier.Send(msg); err != nil {
		t.notice("monthly summary for %s: delivery failed: %v", prev.Key, err)
		return
	}
	e.lastSummary = prev.Key
}

// flushNotices surfaces all recoverable failures of the tick as one
// summarized message.
func (t *tickRun) flushNotices() {
	if len(t.notices) == 0 {
		return
	}
	msg := fmt.Sprintf("⚠️ Tick for %s finished with %d recoverable issue(s):\n- %s",
		t.today.Format("2006-01-02"), len(t.notices), strings.Join(t.notices, "\n- "))
	if err := t.engine.notifier.Send(msg); err != nil {
		t.log.Errorf("Failed to deliver tick notice summary: %v", err)
	}
}
