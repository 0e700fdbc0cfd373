package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository/memory"
)

func TestIdempotencyKeyDifferentRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.txns.Create(ctx, CreateInput{Payer: "alice", Recipient: "bob", Amount: dec("9"), IdempotencyKey: "k-1"})
	require.NoError(t, err)

	_, err = f.txns.Create(ctx, CreateInput{Payer: "alice", Recipient: "bob", Amount: dec("10"), IdempotencyKey: "k-1"})
	assert.ErrorIs(t, err, ErrValidation)

	// same key on another pair is not a second write
	_, err = f.txns.Create(ctx, CreateInput{Payer: "carol", Recipient: "dave", Amount: dec("9"), IdempotencyKey: "k-1"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Len(t, f.all(t), 1)
}

func TestIdempotencyKeySameAmountDifferentScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.txns.Create(ctx, CreateInput{Payer: "alice", Recipient: "bob", Amount: dec("9.50"), IdempotencyKey: "k-2"})
	require.NoError(t, err)
	b, err := f.txns.Create(ctx, CreateInput{Payer: "@alice", Recipient: "bob", Amount: dec("9.5"), IdempotencyKey: "k-2"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestIdempotencyKeyExpires(t *testing.T) {
	store := memory.New()
	for _, u := range []string{"alice", "bob"} {
		_, err := store.Create(context.Background(), models.User{Username: u})
		require.NoError(t, err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewTransactionService(Deps{
		Transactions:   store,
		Users:          store,
		IdempotencyTTL: time.Hour,
		Now:            func() time.Time { return now },
	})
	in := CreateInput{Payer: "alice", Recipient: "bob", Amount: dec("3"), IdempotencyKey: "k-3"}

	first, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	again, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	now = now.Add(time.Hour)
	later, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, later.ID)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	store := memory.New()
	for _, u := range []string{"alice", "bob"} {
		_, err := store.Create(context.Background(), models.User{Username: u})
		require.NoError(t, err)
	}
	f := newFixtureWith(brokenStore{Store: store, err: errors.New("disk full")}, store)

	_, err := f.txns.Create(context.Background(), CreateInput{Payer: "alice", Recipient: "bob", Amount: dec("1"), IdempotencyKey: "k-4"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Zero(t, f.txns.idem.size())
}

func TestIdemCacheBounded(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newIdemCache(time.Hour, 2)
	req := idemRequest{Payer: "alice", Recipient: "bob", Amount: dec("1")}

	for i, key := range []string{"a", "b", "c", "d"} {
		id, err := c.reserve(key, req, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.Empty(t, id)
		c.complete(key, "tx-"+key)
		assert.LessOrEqual(t, c.size(), 2)
	}

	// the oldest keys were dropped, the newest still replays
	id, err := c.reserve("d", req, now.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "tx-d", id)
}

func TestIdemCacheInFlight(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newIdemCache(time.Hour, 10)
	req := idemRequest{Payer: "alice", Recipient: "bob", Amount: dec("1")}

	_, err := c.reserve("k", req, now)
	require.NoError(t, err)
	_, err = c.reserve("k", req, now)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	c.release("k")
	id, err := c.reserve("k", req, now)
	require.NoError(t, err)
	assert.Empty(t, id)
}
