package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finance_assistant_bot/internal/domain/alert"
	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/domain/ledger"
	"finance_assistant_bot/internal/domain/obligation"

	"github.com/sirupsen/logrus"
)

const (
	minAmount     = 1           // one minor unit
	maxAmount     = 100_000_000 // 1,000,000.00 in minor units
	maxNameLength = 100
)

// Validation errors surfaced to the conversational layer.
var (
	ErrInvalidAmount      = errors.New("amount out of range")
	ErrNameTooLong        = errors.New("name exceeds maximum length")
	ErrCategoryKindMatch  = errors.New("category kind does not match transaction kind")
	ErrDebtAlreadySettled = errors.New("debt is already settled")
)

// RegistryService holds the registry mutation commands the surrounding
// application (the conversational layer) calls: creating categories,
// obligations and alert limits, recording manual transactions and settling
// debts. None of these run obligation processing — that is the Engine's job.
type RegistryService struct {
	ledger      ledger.Repository
	obligations obligation.Repository
	alerts      alert.Repository
	balances    *balance.Cache
	clock       Clock
	log         *logrus.Logger
}

func NewRegistryService(
	ledgerRepo ledger.Repository,
	obligationRepo obligation.Repository,
	alertRepo alert.Repository,
	balances *balance.Cache,
	clock Clock,
	log *logrus.Logger,
) *RegistryService {
	return &RegistryService{
		ledger:      ledgerRepo,
		obligations: obligationRepo,
		alerts:      alertRepo,
		balances:    balances,
		clock:       clock,
		log:         log,
	}
}

// CreateCategory creates a category; (name, kind) must be unique.
func (s *RegistryService) CreateCategory(ctx context.Context, name string, kind ledger.Kind) (*ledger.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrNameTooLong
	}
	c := &ledger.Category{Name: name, Kind: kind, IsActive: true}
	if err := s.ledger.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("creating category %q: %w", name, err)
	}
	s.log.Infof("Category %q (%s) created with ID %d", name, kind, c.ID)
	return c, nil
}

// AddTransaction appends a manual ledger entry and invalidates the affected
// daily and monthly cache periods. The category must exist, be active and
// match the transaction kind.
func (s *RegistryService) AddTransaction(ctx context.Context, occurredOn time.Time, amount int64, categoryID int64, kind ledger.Kind, description string) (*ledger.Transaction, error) {
	if amount < minAmount || amount > maxAmount {
		return nil, ErrInvalidAmount
	}
	cat, err := s.ledger.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("looking up category %d: %w", categoryID, err)
	}
	if !cat.IsActive || cat.Kind != kind {
		return nil, ErrCategoryKindMatch
	}

	tx := &ledger.Transaction{
		OccurredOn:  obligation.Date(occurredOn),
		Amount:      amount,
		CategoryID:  categoryID,
		Kind:        kind,
		Source:      ledger.SourceManual,
		Description: description,
	}
	if err := s.ledger.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("appending transaction: %w", err)
	}
	s.balances.InvalidateDate(tx.OccurredOn)
	return tx, nil
}

// RegisterSubscription validates and stores a new subscription. The initial
// next-due date lands in the current month when the clamped charge day has
// not passed yet, otherwise in the next month.
func (s *RegistryService) RegisterSubscription(ctx context.Context, name string, amount int64, categoryID int64, dayOfMonth int) (*obligation.Subscription, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrNameTooLong
	}
	if amount < minAmount || amount > maxAmount {
		return nil, ErrInvalidAmount
	}
	cat, err := s.ledger.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("looking up category %d: %w", categoryID, err)
	}
	if !cat.IsActive || cat.Kind != ledger.KindExpense {
		return nil, ErrCategoryKindMatch
	}

	today := s.clock.Today()
	firstDue, err := obligation.FirstDueDate(today, dayOfMonth)
	if err != nil {
		return nil, err
	}
	sub := &obligation.Subscription{
		Name:        name,
		Amount:      amount,
		CategoryID:  categoryID,
		DayOfMonth:  dayOfMonth,
		NextDueDate: firstDue,
		IsActive:    true,
		CreatedAt:   today,
	}
	if err := s.obligations.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating subscription %q: %w", name, err)
	}
	s.log.Infof("Subscription %q registered, first charge due %s", name, firstDue.Format("2006-01-02"))
	return sub, nil
}

// RegisterReminder stores a one-shot reminder for an absolute date.
func (s *RegistryService) RegisterReminder(ctx context.Context, message string, dueDate time.Time, amount *int64) (*obligation.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrNameTooLong
	}
	rem := &obligation.Reminder{
		Message:   message,
		DueDate:   obligation.Date(dueDate),
		IsActive:  true,
		CreatedAt: s.clock.Today(),
	}
	if amount != nil {
		rem.Amount = sql.NullInt64{Int64: *amount, Valid: true}
	}
	if err := s.obligations.CreateReminder(ctx, rem); err != nil {
		return nil, fmt.Errorf("creating reminder: %w", err)
	}
	return rem, nil
}

// RegisterRecurringReminder stores a reminder firing every month on the
// given day, month-end clamped like subscriptions.
func (s *RegistryService) RegisterRecurringReminder(ctx context.Context, message string, dayOfMonth int, amount *int64) (*obligation.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrNameTooLong
	}
	today := s.clock.Today()
	firstDue, err := obligation.FirstDueDate(today, dayOfMonth)
	if err != nil {
		return nil, err
	}
	rem := &obligation.Reminder{
		Message:    message,
		DayOfMonth: dayOfMonth,
		DueDate:    firstDue,
		Recurring:  true,
		IsActive:   true,
		CreatedAt:  today,
	}
	if amount != nil {
		rem.Amount = sql.NullInt64{Int64: *amount, Valid: true}
	}
	if err := s.obligations.CreateReminder(ctx, rem); err != nil {
		return nil, fmt.Errorf("creating recurring reminder: %w", err)
	}
	return rem, nil
}

// RegisterDebt stores a new unsettled debt. Pure registry mutation; nothing
// is written to the ledger until settlement.
func (s *RegistryService) RegisterDebt(ctx context.Context, counterparty string, amount int64, direction obligation.Direction) (*obligation.Debt, error) {
	counterparty = strings.TrimSpace(counterparty)
	if counterparty == "" || len(counterparty) > maxNameLength {
		return nil, ErrNameTooLong
	}
	if amount < minAmount || amount > maxAmount {
		return nil, ErrInvalidAmount
	}
	d := &obligation.Debt{
		Counterparty: counterparty,
		Amount:       amount,
		Direction:    direction,
		CreatedAt:    s.clock.Today(),
	}
	if err := s.obligations.CreateDebt(ctx, d); err != nil {
		return nil, fmt.Errorf("creating debt: %w", err)
	}
	return d, nil
}

// SettleDebt marks a debt settled and appends the matching debt-settlement
// transaction in one atomic unit. A debt owed to the owner settles as
// income; a debt owed by the owner settles as an expense.
func (s *RegistryService) SettleDebt(ctx context.Context, debtID int64, categoryID int64) error {
	d, err := s.obligations.GetDebt(ctx, debtID)
	if err != nil {
		return fmt.Errorf("looking up debt %d: %w", debtID, err)
	}
	if d.Settled {
		return ErrDebtAlreadySettled
	}

	kind := ledger.KindExpense
	if d.Direction == obligation.DirectionOwedToMe {
		kind = ledger.KindIncome
	}
	cat, err := s.ledger.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("looking up category %d: %w", categoryID, err)
	}
	if !cat.IsActive || cat.Kind != kind {
		return ErrCategoryKindMatch
	}

	today := s.clock.Today()
	tx := &ledger.Transaction{
		OccurredOn:  today,
		Amount:      d.Amount,
		CategoryID:  categoryID,
		Kind:        kind,
		Source:      ledger.SourceDebtSettlement,
		Description: "Debt settled: " + d.Counterparty,
	}
	settled, err := s.obligations.SettleDebt(ctx, debtID, tx)
	if err != nil {
		return fmt.Errorf("settling debt %d: %w", debtID, err)
	}
	if !settled {
		return ErrDebtAlreadySettled
	}
	s.balances.InvalidateDate(today)
	s.log.Infof("Debt %d (%s, %s) settled", d.ID, d.Counterparty, formatAmount(d.Amount))
	return nil
}

// SetAlertLimit replaces the active spending limit for a scope.
func (s *RegistryService) SetAlertLimit(ctx context.Context, scope alert.Scope, threshold int64) (*alert.Limit, error) {
	if threshold < minAmount {
		return nil, ErrInvalidAmount
	}
	l := &alert.Limit{Scope: scope, Threshold: threshold, IsActive: true}
	if err := s.alerts.Upsert(ctx, l); err != nil {
		return nil, fmt.Errorf("setting %s alert limit: %w", scope, err)
	}
	s.log.Infof("%s spending limit set to %s", scope, formatAmount(threshold))
	return l, nil
}

// ListSubscriptions, ListReminders and ListDebts expose the registry for
// display by the conversational layer.
func (s *RegistryService) ListSubscriptions(ctx context.Context) ([]*obligation.Subscription, error) {
	return s.obligations.ListActiveSubscriptions(ctx)
}

func (s *RegistryService) ListReminders(ctx context.Context) ([]*obligation.Reminder, error) {
	return s.obligations.ListActiveReminders(ctx)
}

func (s *RegistryService) ListDebts(ctx context.Context) ([]*obligation.Debt, error) {
	return s.obligations.ListOpenDebts(ctx)
}
