package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnColumns = `id::text, payer, recipient, amount::text, description, conversation_id, created_at, active, deleted_at`

const insertTxn = `
INSERT INTO transactions (id, payer, recipient, amount, description, conversation_id, created_at, active)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, true)
RETURNING ` + txnColumns

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertOne(ctx context.Context, q querier, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	row := q.QueryRow(ctx, insertTxn,
		tx.ID, tx.Payer, tx.Recipient, tx.Amount.String(), tx.Description, tx.ConversationID, tx.CreatedAt,
	)
	out, err := scanTxn(row)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	return out, nil
}

func (r *transactionsRepo) Insert(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	return insertOne(ctx, r.pool, tx)
}

func (r *transactionsRepo) InsertBatch(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	out := make([]models.Transaction, 0, len(txs))
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, t := range txs {
			created, err := insertOne(ctx, tx, t)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transactionsRepo) MarkInactive(ctx context.Context, id string, at time.Time) (models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Transaction{}, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE transactions SET active=false, deleted_at=$2
		  WHERE id=$1 AND active
		  RETURNING `+txnColumns,
		id, at,
	)
	out, err := scanTxn(row)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	return out, nil
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Transaction{}, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id)
	out, err := scanTxn(row)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	return out, nil
}

func (r *transactionsRepo) Query(ctx context.Context, f repository.Filter) ([]models.Transaction, error) {
	where, args := buildWhere(f)
	q := `SELECT ` + txnColumns + ` FROM transactions` + where + ` ORDER BY created_at ASC, seq ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// WithTx runs fn inside one serializable transaction.
func (r *transactionsRepo) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return mapErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func buildWhere(f repository.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if !f.IncludeInactive {
		conds = append(conds, "active")
	}
	if f.Payer != "" {
		add("payer = ?", f.Payer)
	}
	if f.Recipient != "" {
		add("recipient = ?", f.Recipient)
	}
	if f.Involving != "" {
		add("(payer = ? OR recipient = ?)", f.Involving, f.Involving)
	}
	if f.Pair != nil {
		add("((payer = ? AND recipient = ?) OR (payer = ? AND recipient = ?))",
			f.Pair.A, f.Pair.B, f.Pair.B, f.Pair.A)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var (
		tx     models.Transaction
		amount string
	)
	if err := row.Scan(&tx.ID, &tx.Payer, &tx.Recipient, &amount, &tx.Description,
		&tx.ConversationID, &tx.CreatedAt, &tx.Active, &tx.DeletedAt); err != nil {
		return models.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("scan amount %q: %w", amount, err)
	}
	tx.Amount = d
	return tx, nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "23503": // foreign_key_violation: unknown user
			return repository.ErrNotFound
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return repository.ErrConflict
		}
	}
	return err
}
