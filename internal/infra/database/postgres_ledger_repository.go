package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/domain/ledger"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrCategoryNotFound = fmt.Errorf("category not found")
var ErrDuplicateCategory = fmt.Errorf("category with this name and kind already exists")

// PostgresLedgerRepository persists transactions and categories. It also
// implements balance.Source: SumRange is the authoritative aggregation the
// balance cache rebuilds from.
type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) Append(ctx context.Context, t *ledger.Transaction) error {
	query := `INSERT INTO transactions (occurred_on, amount, category_id, kind, source, description)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.OccurredOn, t.Amount, t.CategoryID, t.Kind, t.Source, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending transaction: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) ListRange(ctx context.Context, from, to time.Time) ([]*ledger.Transaction, error) {
	query := `SELECT id, occurred_on, amount, category_id, kind, source, description, created_at
               FROM transactions WHERE occurred_on >= $1 AND occurred_on < $2
               ORDER BY occurred_on, id`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*ledger.Transaction, 0)
	for rows.Next() {
		t := &ledger.Transaction{}
		if err := rows.Scan(&t.ID, &t.OccurredOn, &t.Amount, &t.CategoryID, &t.Kind, &t.Source, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// SumRange aggregates transactions with from <= occurred_on < to by kind.
func (r *PostgresLedgerRepository) SumRange(ctx context.Context, from, to time.Time) (balance.Aggregate, error) {
	query := `SELECT
               COALESCE(SUM(CASE WHEN kind = 'INCOME' THEN amount ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN kind = 'EXPENSE' THEN amount ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN kind = 'SAVING' THEN amount ELSE 0 END), 0)
               FROM transactions WHERE occurred_on >= $1 AND occurred_on < $2`

	var agg balance.Aggregate
	err := r.db.QueryRowContext(ctx, query, from, to).Scan(&agg.Income, &agg.Expense, &agg.Saving)
	if err != nil {
		return balance.Aggregate{}, fmt.Errorf("error aggregating transactions: %w", err)
	}
	return agg, nil
}

func (r *PostgresLedgerRepository) CreateCategory(ctx context.Context, c *ledger.Category) error {
	query := `INSERT INTO categories (name, kind, is_active)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, c.Name, c.Kind, c.IsActive).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") {
			return ErrDuplicateCategory
		}
		return fmt.Errorf("error creating category: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) GetCategory(ctx context.Context, id int64) (*ledger.Category, error) {
	query := `SELECT id, name, kind, is_active, created_at FROM categories WHERE id = $1`
	c := &ledger.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Kind, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("error getting category by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) GetCategoryByNameKind(ctx context.Context, name string, kind ledger.Kind) (*ledger.Category, error) {
	query := `SELECT id, name, kind, is_active, created_at FROM categories WHERE name = $1 AND kind = $2`
	c := &ledger.Category{}
	err := r.db.QueryRowContext(ctx, query, name, kind).Scan(&c.ID, &c.Name, &c.Kind, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("error getting category by name and kind: %w", err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) ListCategories(ctx context.Context, kind ledger.Kind) ([]*ledger.Category, error) {
	query := `SELECT id, name, kind, is_active, created_at
               FROM categories WHERE kind = $1 AND is_active = TRUE ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	defer rows.Close()

	cats := make([]*ledger.Category, 0)
	for rows.Next() {
		c := &ledger.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

func (r *PostgresLedgerRepository) DeactivateCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deactivating category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
