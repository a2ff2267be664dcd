package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"finance_assistant_bot/internal/domain/alert"
	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/domain/ledger"
	"finance_assistant_bot/internal/domain/obligation"
	idb "finance_assistant_bot/internal/infra/database"
)

type fakeClock struct {
	today time.Time
}

func (c *fakeClock) Today() time.Time { return c.today }

// fakeLedger is an in-memory ledger.Repository that also implements
// balance.Source by direct aggregation, so cache results can be checked
// against the raw transaction log.
type fakeLedger struct {
	mu     sync.Mutex
	nextID int64
	txs    []*ledger.Transaction
	cats   map[int64]*ledger.Category
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{cats: make(map[int64]*ledger.Category)}
}

func (f *fakeLedger) addCategory(id int64, name string, kind ledger.Kind, active bool) {
	f.cats[id] = &ledger.Category{ID: id, Name: name, Kind: kind, IsActive: active}
}

func (f *fakeLedger) Append(_ context.Context, t *ledger.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	cp := *t
	f.txs = append(f.txs, &cp)
	return nil
}

func (f *fakeLedger) ListRange(_ context.Context, from, to time.Time) ([]*ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ledger.Transaction
	for _, t := range f.txs {
		if !t.OccurredOn.Before(from) && t.OccurredOn.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLedger) SumRange(_ context.Context, from, to time.Time) (balance.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var agg balance.Aggregate
	for _, t := range f.txs {
		if t.OccurredOn.Before(from) || !t.OccurredOn.Before(to) {
			continue
		}
		switch t.Kind {
		case ledger.KindIncome:
			agg.Income += t.Amount
		case ledger.KindExpense:
			agg.Expense += t.Amount
		case ledger.KindSaving:
			agg.Saving += t.Amount
		}
	}
	return agg, nil
}

func (f *fakeLedger) CreateCategory(_ context.Context, c *ledger.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.cats {
		if existing.Name == c.Name && existing.Kind == c.Kind {
			return idb.ErrDuplicateCategory
		}
	}
	f.nextID++
	c.ID = f.nextID
	f.cats[c.ID] = c
	return nil
}

func (f *fakeLedger) GetCategory(_ context.Context, id int64) (*ledger.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cats[id]
	if !ok {
		return nil, idb.ErrCategoryNotFound
	}
	return c, nil
}

func (f *fakeLedger) GetCategoryByNameKind(_ context.Context, name string, kind ledger.Kind) (*ledger.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cats {
		if c.Name == name && c.Kind == kind {
			return c, nil
		}
	}
	return nil, idb.ErrCategoryNotFound
}

func (f *fakeLedger) ListCategories(_ context.Context, kind ledger.Kind) ([]*ledger.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ledger.Category
	for _, c := range f.cats {
		if c.Kind == kind && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeactivateCategory(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cats[id]
	if !ok {
		return idb.ErrCategoryNotFound
	}
	c.IsActive = false
	return nil
}

// fakeObligations mirrors the Postgres repository's guard semantics,
// including the idempotent charge application, and can inject transient
// failures.
type fakeObligations struct {
	mu     sync.Mutex
	led    *fakeLedger
	nextID int64
	subs   map[int64]*obligation.Subscription
	rems   map[int64]*obligation.Reminder
	debts  map[int64]*obligation.Debt

	chargeErr     error // returned by ApplyCharge while set
	chargeErrLeft int   // number of calls that fail; <0 means always
}

func newFakeObligations(led *fakeLedger) *fakeObligations {
	return &fakeObligations{
		led:   led,
		subs:  make(map[int64]*obligation.Subscription),
		rems:  make(map[int64]*obligation.Reminder),
		debts: make(map[int64]*obligation.Debt),
	}
}

func (f *fakeObligations) CreateSubscription(_ context.Context, s *obligation.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	f.subs[s.ID] = s
	return nil
}

func (f *fakeObligations) ListActiveSubscriptions(_ context.Context) ([]*obligation.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*obligation.Subscription
	for _, s := range f.subs {
		if s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeObligations) DeactivateSubscription(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return idb.ErrSubscriptionNotFound
	}
	s.IsActive = false
	return nil
}

func (f *fakeObligations) ApplyCharge(ctx context.Context, subID int64, dueDate, nextDue time.Time, tx *ledger.Transaction) (bool, error) {
	f.mu.Lock()
	if f.chargeErrLeft != 0 && f.chargeErr != nil {
		if f.chargeErrLeft > 0 {
			f.chargeErrLeft--
		}
		err := f.chargeErr
		f.mu.Unlock()
		return false, err
	}
	s, ok := f.subs[subID]
	if !ok || !s.IsActive {
		f.mu.Unlock()
		return false, nil
	}
	if s.LastChargedDate.Valid && !s.LastChargedDate.Time.Before(dueDate) {
		f.mu.Unlock()
		return false, nil
	}
	s.LastChargedDate.Time = dueDate
	s.LastChargedDate.Valid = true
	s.NextDueDate = nextDue
	f.mu.Unlock()
	return true, f.led.Append(ctx, tx)
}

func (f *fakeObligations) CreateReminder(_ context.Context, r *obligation.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	f.rems[r.ID] = r
	return nil
}

func (f *fakeObligations) ListActiveReminders(_ context.Context) ([]*obligation.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*obligation.Reminder
	for _, r := range f.rems {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeObligations) DeactivateReminder(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rems[id]
	if !ok {
		return idb.ErrReminderNotFound
	}
	r.IsActive = false
	return nil
}

func (f *fakeObligations) MarkReminderFired(_ context.Context, id int64, firedOn, nextDue time.Time, stillActive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rems[id]
	if !ok {
		return idb.ErrReminderNotFound
	}
	if r.LastFiredDate.Valid && !r.LastFiredDate.Time.Before(firedOn) {
		return nil
	}
	r.LastFiredDate.Time = firedOn
	r.LastFiredDate.Valid = true
	r.DueDate = nextDue
	r.IsActive = stillActive
	return nil
}

func (f *fakeObligations) CreateDebt(_ context.Context, d *obligation.Debt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	f.debts[d.ID] = d
	return nil
}

func (f *fakeObligations) GetDebt(_ context.Context, id int64) (*obligation.Debt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.debts[id]
	if !ok {
		return nil, idb.ErrDebtNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeObligations) ListOpenDebts(_ context.Context) ([]*obligation.Debt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*obligation.Debt
	for _, d := range f.debts {
		if !d.Settled {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeObligations) SettleDebt(ctx context.Context, debtID int64, tx *ledger.Transaction) (bool, error) {
	f.mu.Lock()
	d, ok := f.debts[debtID]
	if !ok || d.Settled {
		f.mu.Unlock()
		return false, nil
	}
	d.Settled = true
	f.mu.Unlock()
	return true, f.led.Append(ctx, tx)
}

type fakeAlerts struct {
	mu     sync.Mutex
	nextID int64
	limits map[int64]*alert.Limit
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{limits: make(map[int64]*alert.Limit)}
}

func (f *fakeAlerts) Upsert(_ context.Context, l *alert.Limit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.limits {
		if existing.Scope == l.Scope {
			existing.Threshold = l.Threshold
			existing.IsActive = true
			*l = *existing
			return nil
		}
	}
	f.nextID++
	l.ID = f.nextID
	l.IsActive = true
	f.limits[l.ID] = l
	return nil
}

func (f *fakeAlerts) ListActive(_ context.Context) ([]*alert.Limit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*alert.Limit
	for _, l := range f.limits {
		if l.IsActive {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAlerts) MarkNotified(_ context.Context, id int64, periodKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limits[id]
	if !ok {
		return nil
	}
	if l.LastNotifiedPeriod.Valid && l.LastNotifiedPeriod.String >= periodKey {
		return nil
	}
	l.LastNotifiedPeriod.String = periodKey
	l.LastNotifiedPeriod.Valid = true
	return nil
}

// fakeNotifier records deliveries and can be told to fail.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeNotifier) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}
