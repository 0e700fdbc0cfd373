// Package memory is an in-process repository.Store used by tests and
// STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	txns  []models.Transaction
	index map[string]int
	users map[string]models.User
}

func New() *Store {
	return &Store{
		index: make(map[string]int),
		users: make(map[string]models.User),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Insert(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	out, err := s.InsertBatch(ctx, []models.Transaction{tx})
	if err != nil {
		return models.Transaction{}, err
	}
	return out[0], nil
}

func (s *Store) InsertBatch(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate the whole batch before touching state
	seen := make(map[string]struct{}, len(txs))
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if _, dup := s.index[tx.ID]; dup {
			return nil, repository.ErrConflict
		}
		if _, dup := seen[tx.ID]; dup {
			return nil, repository.ErrConflict
		}
		seen[tx.ID] = struct{}{}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		tx.Active = true
		tx.DeletedAt = nil
		out[i] = tx
	}
	for _, tx := range out {
		s.index[tx.ID] = len(s.txns)
		s.txns = append(s.txns, tx)
	}
	return out, nil
}

func (s *Store) MarkInactive(ctx context.Context, id string, at time.Time) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || !s.txns[i].Active {
		return models.Transaction{}, repository.ErrNotFound
	}
	s.txns[i].Active = false
	s.txns[i].DeletedAt = &at
	return s.txns[i], nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	return s.txns[i], nil
}

func (s *Store) Query(ctx context.Context, f repository.Filter) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Transaction, 0)
	for _, tx := range s.txns {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	// txns is in insertion order; a stable sort keeps it for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return models.User{}, repository.ErrConflict
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.Username] = u
	return u, nil
}

func (s *Store) Get(ctx context.Context, username string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Store) List(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateConversation(ctx context.Context, username, conversationID string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	u.ConversationID = conversationID
	u.UpdatedAt = time.Now().UTC()
	s.users[username] = u
	return u, nil
}

func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.Get(ctx, username)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}
