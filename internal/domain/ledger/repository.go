package ledger

import (
	"context"
	"time"
)

// Repository defines the append-and-read operations for the transaction log
// and its categories. Transactions are never mutated or deleted through this
// interface.
type Repository interface {
	// Append writes a transaction and fills in its ID and CreatedAt.
	Append(ctx context.Context, tx *Transaction) error
	// ListRange returns transactions with from <= OccurredOn < to, ascending.
	ListRange(ctx context.Context, from, to time.Time) ([]*Transaction, error)

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetCategoryByNameKind(ctx context.Context, name string, kind Kind) (*Category, error)
	ListCategories(ctx context.Context, kind Kind) ([]*Category, error)
	DeactivateCategory(ctx context.Context, id int64) error
}
