// Package postgres implements the repositories on PostgreSQL via pgx.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/iou-backend/internal/repository"
)

type Repositories struct {
	*transactionsRepo
	*usersRepo
	pool *pgxpool.Pool
}

var _ repository.Store = (*Repositories)(nil)

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		transactionsRepo: &transactionsRepo{pool},
		usersRepo:        &usersRepo{pool},
		pool:             pool,
	}
}

// Close releases the pool.
func (r *Repositories) Close() error {
	r.pool.Close()
	return nil
}
