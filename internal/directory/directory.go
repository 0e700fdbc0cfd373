// Package directory is the user directory used by the ledger to check that
// referenced users exist. Lookups are cached in Redis when one is configured.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

const cacheNamespace = "iou:user"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

type Directory struct {
	users repository.Users
	rdb   *redis.Client // nil disables caching
	ttl   time.Duration
	log   *slog.Logger
}

// New returns a directory over users. rdb may be nil.
func New(users repository.Users, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{users: users, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(username string) string { return cacheNamespace + ":" + username }

func (d *Directory) Register(ctx context.Context, u models.User) (models.User, error) {
	if err := u.Validate(); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	created, err := d.users.Create(ctx, u)
	if errors.Is(err, repository.ErrConflict) {
		return models.User{}, ErrUserExists
	}
	if err != nil {
		return models.User{}, fmt.Errorf("register %s: %w", u.Username, err)
	}
	d.put(ctx, created)
	return created, nil
}

func (d *Directory) Get(ctx context.Context, username string) (models.User, error) {
	username = models.NormalizeUsername(username)
	if u, ok := d.cached(ctx, username); ok {
		return u, nil
	}
	u, err := d.users.Get(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get %s: %w", username, err)
	}
	d.put(ctx, u)
	return u, nil
}

// Exists reports whether username is registered. Only positive answers are
// cached so a fresh registration is visible immediately.
func (d *Directory) Exists(ctx context.Context, username string) (bool, error) {
	_, err := d.Get(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Directory) List(ctx context.Context) ([]models.User, error) {
	return d.users.List(ctx)
}

func (d *Directory) UpdateConversation(ctx context.Context, username, conversationID string) (models.User, error) {
	username = models.NormalizeUsername(username)
	u, err := d.users.UpdateConversation(ctx, username, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("update %s: %w", username, err)
	}
	d.invalidate(ctx, username)
	return u, nil
}

func (d *Directory) cached(ctx context.Context, username string) (models.User, bool) {
	if d.rdb == nil {
		return models.User{}, false
	}
	raw, err := d.rdb.Get(ctx, cacheKey(username)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn("user cache read failed", "username", username, "err", err)
		}
		return models.User{}, false
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		d.log.Warn("user cache entry corrupt", "username", username, "err", err)
		return models.User{}, false
	}
	return u, true
}

func (d *Directory) put(ctx context.Context, u models.User) {
	if d.rdb == nil {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := d.rdb.Set(ctx, cacheKey(u.Username), raw, d.ttl).Err(); err != nil {
		d.log.Warn("user cache write failed", "username", u.Username, "err", err)
	}
}

func (d *Directory) invalidate(ctx context.Context, username string) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, cacheKey(username)).Err(); err != nil {
		d.log.Warn("user cache invalidate failed", "username", username, "err", err)
	}
}
