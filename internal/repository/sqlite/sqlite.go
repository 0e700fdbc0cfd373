// Package sqlite implements repository.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/baharkarakas/iou-backend/internal/models"
	"github.com/baharkarakas/iou-backend/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// busy_timeout lets concurrent writers wait instead of failing with SQLITE_BUSY
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const txnColumns = `id, payer, recipient, amount, description, conversation_id, created_at, active, deleted_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOne(ctx context.Context, e execer, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.Active = true
	_, err := e.ExecContext(ctx,
		`INSERT INTO transactions (id, payer, recipient, amount, description, conversation_id, created_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		tx.ID, tx.Payer, tx.Recipient, tx.Amount.String(), tx.Description, tx.ConversationID, tx.CreatedAt.UnixNano(),
	)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	return tx, nil
}

func (s *Store) Insert(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	return insertOne(ctx, s.db, tx)
}

func (s *Store) InsertBatch(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	out := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		created, err := insertOne(ctx, dbTx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return out, nil
}

func (s *Store) MarkInactive(ctx context.Context, id string, at time.Time) (models.Transaction, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET active = 0, deleted_at = ? WHERE id = ? AND active = 1`,
		at.UnixNano(), id,
	)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to mark transaction inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Transaction{}, err
	}
	if n == 0 {
		return models.Transaction{}, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTxn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, repository.ErrNotFound
	}
	return tx, err
}

func (s *Store) Query(ctx context.Context, f repository.Filter) ([]models.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	if !f.IncludeInactive {
		conds = append(conds, "active = 1")
	}
	if f.Payer != "" {
		conds = append(conds, "payer = ?")
		args = append(args, f.Payer)
	}
	if f.Recipient != "" {
		conds = append(conds, "recipient = ?")
		args = append(args, f.Recipient)
	}
	if f.Involving != "" {
		conds = append(conds, "(payer = ? OR recipient = ?)")
		args = append(args, f.Involving, f.Involving)
	}
	if f.Pair != nil {
		conds = append(conds, "((payer = ? AND recipient = ?) OR (payer = ? AND recipient = ?))")
		args = append(args, f.Pair.A, f.Pair.B, f.Pair.B, f.Pair.A)
	}
	q := `SELECT ` + txnColumns + ` FROM transactions`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at ASC, seq ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTxn(sc scanner) (models.Transaction, error) {
	var (
		tx        models.Transaction
		amount    string
		createdAt int64
		active    int
		deletedAt sql.NullInt64
	)
	if err := sc.Scan(&tx.ID, &tx.Payer, &tx.Recipient, &amount, &tx.Description,
		&tx.ConversationID, &createdAt, &active, &deletedAt); err != nil {
		return models.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	tx.Amount = d
	tx.CreatedAt = time.Unix(0, createdAt).UTC()
	tx.Active = active == 1
	if deletedAt.Valid {
		t := time.Unix(0, deletedAt.Int64).UTC()
		tx.DeletedAt = &t
	}
	return tx, nil
}

func mapErr(err error) error {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return repository.ErrConflict
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return repository.ErrNotFound
	}
	// primary result code only
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return repository.ErrConflict
		case strings.Contains(msg, "FOREIGN KEY"):
			return repository.ErrNotFound
		}
	}
	return err
}
