package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/iou-backend/internal/events"
	"github.com/baharkarakas/iou-backend/internal/lock"
	"github.com/baharkarakas/iou-backend/internal/models"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
	"github.com/baharkarakas/iou-backend/internal/repository/memory"
)

type fixture struct {
	store  *memory.Store
	events *recorder
	locker *lock.Local
	deps   Deps

	txns    *TransactionService
	balance *BalanceService
	settle  *SettlementService
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	if len(users) == 0 {
		users = []string{"alice", "bob", "carol", "dave"}
	}
	store := memory.New()
	for _, u := range users {
		_, err := store.Create(context.Background(), models.User{Username: u})
		require.NoError(t, err)
	}
	return newFixtureWith(store, store)
}

func newFixtureWith(txns repo.Transactions, users UserChecker) *fixture {
	f := &fixture{events: &recorder{}, locker: lock.NewLocal(time.Second)}
	f.store, _ = txns.(*memory.Store)

	// strictly increasing clock so creation order is observable
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	f.deps = Deps{
		Transactions: txns,
		Users:        users,
		Locker:       f.locker,
		Events:       f.events,
		StoreTimeout: time.Second,
		Now: func() time.Time {
			return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
		},
	}
	f.txns = NewTransactionService(f.deps)
	f.balance = NewBalanceService(f.deps)
	f.settle = NewSettlementService(f.deps)
	return f
}

func (f *fixture) create(t *testing.T, payer, recipient, amount string) models.Transaction {
	t.Helper()
	tx, err := f.txns.Create(context.Background(), CreateInput{Payer: payer, Recipient: recipient, Amount: dec(amount)})
	require.NoError(t, err)
	return tx
}

func (f *fixture) all(t *testing.T) []models.Transaction {
	t.Helper()
	var out []models.Transaction
	for tx, err := range f.txns.List(context.Background(), ListOptions{IncludeInactive: true}) {
		require.NoError(t, err)
		out = append(out, tx)
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *string { return &s }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// slowStore never answers before the caller's deadline.
type slowStore struct{ *memory.Store }

func (s slowStore) Query(ctx context.Context, _ repo.Filter) ([]models.Transaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenStore fails every write.
type brokenStore struct {
	*memory.Store
	err error
}

func (s brokenStore) Insert(context.Context, models.Transaction) (models.Transaction, error) {
	return models.Transaction{}, s.err
}

func (s brokenStore) InsertBatch(context.Context, []models.Transaction) ([]models.Transaction, error) {
	return nil, s.err
}
