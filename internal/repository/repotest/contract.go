// Package repotest holds behaviour checks shared by every repository.Store
// implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s repository.Store) {
	t.Helper()
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := s.Create(ctx, models.User{Username: name, DisplayName: name})
		require.NoError(t, err)
	}

	t.Run("duplicate user conflicts", func(t *testing.T) {
		_, err := s.Create(ctx, models.User{Username: "alice"})
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("user lookup", func(t *testing.T) {
		ok, err := s.Exists(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists(ctx, "mallory")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Get(ctx, "mallory")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		users, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "carol", users[2].Username)
	})

	t.Run("update conversation", func(t *testing.T) {
		u, err := s.UpdateConversation(ctx, "carol", "chat-42")
		require.NoError(t, err)
		assert.Equal(t, "chat-42", u.ConversationID)

		_, err = s.UpdateConversation(ctx, "mallory", "x")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	base := time.Now().UTC().Truncate(time.Microsecond)
	var first models.Transaction

	t.Run("insert assigns id and keeps amount", func(t *testing.T) {
		var err error
		first, err = s.Insert(ctx, models.Transaction{
			Payer:     "alice",
			Recipient: "bob",
			Amount:    decimal.RequireFromString("12.50"),
			CreatedAt: base,
		})
		require.NoError(t, err)
		_, err = uuid.Parse(first.ID)
		assert.NoError(t, err)
		assert.True(t, first.Active)
		assert.True(t, first.Amount.Equal(decimal.RequireFromString("12.5")))

		got, err := s.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "alice", got.Payer)
		assert.True(t, got.CreatedAt.Equal(base))
	})

	t.Run("batch keeps order", func(t *testing.T) {
		out, err := s.InsertBatch(ctx, []models.Transaction{
			{Payer: "carol", Recipient: "alice", Amount: decimal.NewFromInt(3), CreatedAt: base.Add(time.Second)},
			{Payer: "carol", Recipient: "bob", Amount: decimal.NewFromInt(3), CreatedAt: base.Add(time.Second)},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)

		all, err := s.Query(ctx, repository.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, first.ID, all[0].ID)
		assert.Equal(t, out[0].ID, all[1].ID)
		assert.Equal(t, out[1].ID, all[2].ID)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		id := uuid.NewString()
		_, err := s.InsertBatch(ctx, []models.Transaction{
			{ID: id, Payer: "bob", Recipient: "carol", Amount: decimal.NewFromInt(1), CreatedAt: base.Add(2 * time.Second)},
			{ID: id, Payer: "bob", Recipient: "alice", Amount: decimal.NewFromInt(1), CreatedAt: base.Add(2 * time.Second)},
		})
		require.Error(t, err)

		_, err = s.GetByID(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		all, err := s.Query(ctx, repository.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("filters", func(t *testing.T) {
		got, err := s.Query(ctx, repository.Filter{Payer: "carol"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.Query(ctx, repository.Filter{Recipient: "bob"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.Query(ctx, repository.Filter{Involving: "alice"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		p := models.NewPair("bob", "alice")
		got, err = s.Query(ctx, repository.Filter{Pair: &p})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, first.ID, got[0].ID)
	})

	t.Run("mark inactive", func(t *testing.T) {
		at := base.Add(time.Minute)
		tx, err := s.MarkInactive(ctx, first.ID, at)
		require.NoError(t, err)
		assert.False(t, tx.Active)
		require.NotNil(t, tx.DeletedAt)

		_, err = s.MarkInactive(ctx, first.ID, at)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = s.MarkInactive(ctx, uuid.NewString(), at)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		active, err := s.Query(ctx, repository.Filter{})
		require.NoError(t, err)
		assert.Len(t, active, 2)

		all, err := s.Query(ctx, repository.Filter{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		got, err := s.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
