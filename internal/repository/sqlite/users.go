package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

const userColumns = `username, display_name, conversation_id, created_at, updated_at`

func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, conversation_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.ConversationID, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return u, nil
}

func (s *Store) Get(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, repository.ErrNotFound
	}
	return u, err
}

func (s *Store) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateConversation(ctx context.Context, username, conversationID string) (models.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET conversation_id = ?, updated_at = ? WHERE username = ?`,
		conversationID, time.Now().UTC().UnixNano(), username,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, repository.ErrNotFound
	}
	return s.Get(ctx, username)
}

func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

func scanUser(sc scanner) (models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt int64
	)
	if err := sc.Scan(&u.Username, &u.DisplayName, &u.ConversationID, &createdAt, &updatedAt); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	u.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return u, nil
}
