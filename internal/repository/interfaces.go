package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/iou-backend/internal/models"
)

var (
	ErrNotFound = errors.New("repository: not found")
	ErrConflict = errors.New("repository: already exists")
)

// Filter selects transactions. Zero fields match everything; by default
// only active transactions are returned.
type Filter struct {
	Payer     string
	Recipient string
	// Involving matches transactions where the user is either side.
	Involving string
	// Pair matches transactions between the two users in either direction.
	Pair            *models.Pair
	IncludeInactive bool
}

// Match reports whether t satisfies the filter. Stores that cannot push a
// predicate down use it directly.
func (f Filter) Match(t models.Transaction) bool {
	if !f.IncludeInactive && !t.Active {
		return false
	}
	if f.Payer != "" && t.Payer != f.Payer {
		return false
	}
	if f.Recipient != "" && t.Recipient != f.Recipient {
		return false
	}
	if f.Involving != "" && !t.Involves(f.Involving) {
		return false
	}
	if f.Pair != nil && t.Pair() != *f.Pair {
		return false
	}
	return true
}

type Transactions interface {
	Insert(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	// InsertBatch writes every transaction or none of them.
	InsertBatch(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error)
	// MarkInactive flips an active transaction to inactive. It returns
	// ErrNotFound when the id is unknown or already inactive.
	MarkInactive(ctx context.Context, id string, at time.Time) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	// Query returns matching transactions ordered by creation time, then
	// insertion order.
	Query(ctx context.Context, f Filter) ([]models.Transaction, error)
}

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	Get(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateConversation(ctx context.Context, username, conversationID string) (models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
}

// Store bundles both repositories behind one backend.
type Store interface {
	Transactions
	Users
	Close() error
}
