package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

type usersRepo struct{ pool *pgxpool.Pool }

func NewUsers(pool *pgxpool.Pool) repository.Users {
	return &usersRepo{pool: pool}
}

const userColumns = `username, display_name, conversation_id, created_at, updated_at`

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users(username, display_name, conversation_id) VALUES($1,$2,$3)
		 RETURNING `+userColumns,
		u.Username, u.DisplayName, u.ConversationID,
	).Scan(&u.Username, &u.DisplayName, &u.ConversationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) Get(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username=$1`, username,
	).Scan(&u.Username, &u.DisplayName, &u.ConversationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Username, &u.DisplayName, &u.ConversationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) UpdateConversation(ctx context.Context, username, conversationID string) (models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET conversation_id=$2, updated_at=now() WHERE username=$1
		 RETURNING `+userColumns,
		username, conversationID,
	).Scan(&u.Username, &u.DisplayName, &u.ConversationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

func (r *usersRepo) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&exists)
	return exists, err
}
