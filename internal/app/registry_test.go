package app

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"finance_assistant_bot/internal/domain/alert"
	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/domain/ledger"
	"finance_assistant_bot/internal/domain/obligation"
	idb "finance_assistant_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryFixture struct {
	led     *fakeLedger
	obl     *fakeObligations
	alerts  *fakeAlerts
	cache   *balance.Cache
	clock   *fakeClock
	service *RegistryService
}

func newRegistryFixture(today time.Time) *registryFixture {
	led := newFakeLedger()
	obl := newFakeObligations(led)
	alerts := newFakeAlerts()
	cache := balance.NewCache(led)
	clock := &fakeClock{today: today}

	log := logrus.New()
	log.SetOutput(io.Discard)

	return &registryFixture{
		led:     led,
		obl:     obl,
		alerts:  alerts,
		cache:   cache,
		clock:   clock,
		service: NewRegistryService(led, obl, alerts, cache, clock, log),
	}
}

func TestCreateCategory(t *testing.T) {
	f := newRegistryFixture(date(2025, time.June, 1))

	cat, err := f.service.CreateCategory(context.Background(), "  Groceries ", ledger.KindExpense)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", cat.Name)
	assert.True(t, cat.IsActive)

	_, err = f.service.CreateCategory(context.Background(), "Groceries", ledger.KindExpense)
	assert.ErrorIs(t, err, idb.ErrDuplicateCategory)

	// Same name under a different kind is a distinct category.
	_, err = f.service.CreateCategory(context.Background(), "Groceries", ledger.KindIncome)
	assert.NoError(t, err)

	_, err = f.service.CreateCategory(context.Background(), "   ", ledger.KindExpense)
	assert.ErrorIs(t, err, ErrNameTooLong)
	_, err = f.service.CreateCategory(context.Background(), strings.Repeat("x", maxNameLength+1), ledger.KindExpense)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestAddTransaction(t *testing.T) {
	today := date(2025, time.June, 10)
	f := newRegistryFixture(today)
	f.led.addCategory(1, "Salary", ledger.KindIncome, true)
	f.led.addCategory(2, "Closed", ledger.KindExpense, false)

	tx, err := f.service.AddTransaction(context.Background(), today, 2500_00, 1, ledger.KindIncome, "June salary")
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceManual, tx.Source)
	assert.Equal(t, today, tx.OccurredOn)

	// The write lands in the cached aggregate immediately.
	agg, err := f.cache.Get(context.Background(), balance.Daily(today))
	require.NoError(t, err)
	assert.Equal(t, int64(2500_00), agg.Income)

	_, err = f.service.AddTransaction(context.Background(), today, 100, 1, ledger.KindExpense, "kind mismatch")
	assert.ErrorIs(t, err, ErrCategoryKindMatch)

	_, err = f.service.AddTransaction(context.Background(), today, 100, 2, ledger.KindExpense, "inactive category")
	assert.ErrorIs(t, err, ErrCategoryKindMatch)

	_, err = f.service.AddTransaction(context.Background(), today, 0, 1, ledger.KindIncome, "zero amount")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.service.AddTransaction(context.Background(), today, maxAmount+1, 1, ledger.KindIncome, "absurd amount")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRegisterSubscription_InitialDueDate(t *testing.T) {
	tests := []struct {
		name    string
		today   time.Time
		day     int
		wantDue time.Time
	}{
		{"charge day still ahead", date(2025, time.June, 5), 20, date(2025, time.June, 20)},
		{"charge day already passed", date(2025, time.June, 25), 20, date(2025, time.July, 20)},
		{"registration day itself is due", date(2025, time.June, 20), 20, date(2025, time.June, 20)},
		{"clamped day in a short month", date(2025, time.February, 10), 31, date(2025, time.February, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistryFixture(tt.today)
			f.led.addCategory(1, "Streaming", ledger.KindExpense, true)

			sub, err := f.service.RegisterSubscription(context.Background(), "Netflix", 150_00, 1, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDue, sub.NextDueDate)
			assert.True(t, sub.IsActive)
		})
	}
}

func TestRegisterSubscription_Validation(t *testing.T) {
	f := newRegistryFixture(date(2025, time.June, 5))
	f.led.addCategory(1, "Streaming", ledger.KindExpense, true)
	f.led.addCategory(2, "Salary", ledger.KindIncome, true)

	_, err := f.service.RegisterSubscription(context.Background(), "Netflix", 150_00, 2, 20)
	assert.ErrorIs(t, err, ErrCategoryKindMatch, "income category cannot back a subscription")

	_, err = f.service.RegisterSubscription(context.Background(), "Netflix", 150_00, 99, 20)
	assert.ErrorIs(t, err, idb.ErrCategoryNotFound)

	_, err = f.service.RegisterSubscription(context.Background(), "Netflix", 150_00, 1, 0)
	assert.ErrorIs(t, err, obligation.ErrInvalidDayOfMonth)

	_, err = f.service.RegisterSubscription(context.Background(), "Netflix", 0, 1, 20)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.service.RegisterSubscription(context.Background(), "", 150_00, 1, 20)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestRegisterRecurringReminder(t *testing.T) {
	f := newRegistryFixture(date(2025, time.February, 10))

	amount := int64(500_00)
	rem, err := f.service.RegisterRecurringReminder(context.Background(), "Pay rent", 31, &amount)
	require.NoError(t, err)
	assert.True(t, rem.Recurring)
	assert.Equal(t, date(2025, time.February, 28), rem.DueDate)
	assert.Equal(t, amount, rem.Amount.Int64)

	_, err = f.service.RegisterRecurringReminder(context.Background(), "Bad", 32, nil)
	assert.ErrorIs(t, err, obligation.ErrInvalidDayOfMonth)
}

func TestRegisterReminder_OneShot(t *testing.T) {
	f := newRegistryFixture(date(2025, time.June, 1))

	rem, err := f.service.RegisterReminder(context.Background(), "Renew passport", date(2025, time.September, 3), nil)
	require.NoError(t, err)
	assert.False(t, rem.Recurring)
	assert.Equal(t, date(2025, time.September, 3), rem.DueDate)
	assert.False(t, rem.Amount.Valid)
}

func TestSettleDebt(t *testing.T) {
	today := date(2025, time.July, 7)
	f := newRegistryFixture(today)
	f.led.addCategory(1, "Repayments", ledger.KindIncome, true)
	f.led.addCategory(2, "Repayments", ledger.KindExpense, true)

	owedToMe, err := f.service.RegisterDebt(context.Background(), "Alice", 200_00, obligation.DirectionOwedToMe)
	require.NoError(t, err)
	owedByMe, err := f.service.RegisterDebt(context.Background(), "Bob", 80_00, obligation.DirectionOwedByMe)
	require.NoError(t, err)

	require.NoError(t, f.service.SettleDebt(context.Background(), owedToMe.ID, 1))
	require.Len(t, f.led.txs, 1)
	assert.Equal(t, ledger.KindIncome, f.led.txs[0].Kind)
	assert.Equal(t, ledger.SourceDebtSettlement, f.led.txs[0].Source)
	assert.Equal(t, today, f.led.txs[0].OccurredOn)

	// A debt the owner owes settles as an expense.
	require.NoError(t, f.service.SettleDebt(context.Background(), owedByMe.ID, 2))
	require.Len(t, f.led.txs, 2)
	assert.Equal(t, ledger.KindExpense, f.led.txs[1].Kind)

	// Settling twice is rejected and writes nothing.
	err = f.service.SettleDebt(context.Background(), owedToMe.ID, 1)
	assert.ErrorIs(t, err, ErrDebtAlreadySettled)
	assert.Len(t, f.led.txs, 2)

	// The settlement category must match the settlement direction.
	third, err := f.service.RegisterDebt(context.Background(), "Carol", 50_00, obligation.DirectionOwedToMe)
	require.NoError(t, err)
	err = f.service.SettleDebt(context.Background(), third.ID, 2)
	assert.ErrorIs(t, err, ErrCategoryKindMatch)

	open, err := f.service.ListDebts(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Carol", open[0].Counterparty)
}

func TestSetAlertLimit_ReplacesPerScope(t *testing.T) {
	f := newRegistryFixture(date(2025, time.June, 1))

	first, err := f.service.SetAlertLimit(context.Background(), alert.ScopeDaily, 500_00)
	require.NoError(t, err)

	second, err := f.service.SetAlertLimit(context.Background(), alert.ScopeDaily, 800_00)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same scope reuses the limit row")
	assert.Equal(t, int64(800_00), second.Threshold)

	_, err = f.service.SetAlertLimit(context.Background(), alert.ScopeMonthly, 3000_00)
	require.NoError(t, err)

	active, err := f.alerts.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = f.service.SetAlertLimit(context.Background(), alert.ScopeDaily, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
