package services

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/iou-backend/internal/events"
	"github.com/baharkarakas/iou-backend/internal/metrics"
	"github.com/baharkarakas/iou-backend/internal/models"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
)

// TransactionService owns the transaction lifecycle: active on create,
// inactive on delete, never back.
type TransactionService struct {
	*ledger
	idem *idemCache
}

func NewTransactionService(d Deps) *TransactionService {
	return &TransactionService{ledger: newLedger(d), idem: newIdemCache(d.IdempotencyTTL, maxIdempotencyKeys)}
}

type CreateInput struct {
	Payer          string
	Recipient      string
	Amount         decimal.Decimal
	Description    string
	ConversationID string
	IdempotencyKey string
}

// ListOptions filters List. User1 alone matches either side; User1 and User2
// together match the pair in both directions.
type ListOptions struct {
	Payer           string
	Recipient       string
	User1           string
	User2           string
	IncludeInactive bool
}

// ----------------- CREATE -----------------

// Create records that Recipient owes Payer Amount.
func (s *TransactionService) Create(ctx context.Context, in CreateInput) (models.Transaction, error) {
	tx, err := s.create(ctx, in)
	if err != nil {
		return models.Transaction{}, s.fail("create", err)
	}
	s.log.Info("transaction created",
		"txn_id", tx.ID, "payer", tx.Payer, "recipient", tx.Recipient, "amount", tx.Amount.String())
	s.publish(txEvent(events.TypeTransactionCreated, tx))
	return tx, nil
}

func (s *TransactionService) create(ctx context.Context, in CreateInput) (models.Transaction, error) {
	payer, recipient := models.NormalizeUsername(in.Payer), models.NormalizeUsername(in.Recipient)
	switch {
	case payer == "":
		return models.Transaction{}, invalid("payer", "required")
	case recipient == "":
		return models.Transaction{}, invalid("recipient", "required")
	case payer == recipient:
		return models.Transaction{}, invalid("recipient", "must differ from payer")
	}
	if err := validateAmount(in.Amount); err != nil {
		return models.Transaction{}, err
	}
	if err := s.checkUsers(ctx, payer, recipient); err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		Payer:          payer,
		Recipient:      recipient,
		Amount:         in.Amount,
		Description:    in.Description,
		ConversationID: in.ConversationID,
	}
	unlock, err := s.lockPairs(ctx, tx.Pair())
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	now := s.now()
	if key := in.IdempotencyKey; key != "" {
		req := idemRequest{
			Payer: payer, Recipient: recipient, Amount: in.Amount,
			Description: in.Description, ConversationID: in.ConversationID,
		}
		id, err := s.idem.reserve(key, req, now)
		if err != nil {
			return models.Transaction{}, err
		}
		if id != "" {
			return s.get(ctx, id)
		}
		defer s.idem.release(key) // no-op once completed
	}

	tx.CreatedAt = now
	out, err := s.insert(ctx, []models.Transaction{tx})
	if err != nil {
		return models.Transaction{}, err
	}
	if in.IdempotencyKey != "" {
		s.idem.complete(in.IdempotencyKey, out[0].ID)
	}
	return out[0], nil
}

// ----------------- DELETE -----------------

// Delete soft-deletes an active transaction. Unknown or already inactive ids
// are ErrNotFound.
func (s *TransactionService) Delete(ctx context.Context, id string) (models.Transaction, error) {
	tx, err := s.delete(ctx, id)
	if err != nil {
		return models.Transaction{}, s.fail("delete", err)
	}
	metrics.TransactionsDeleted.Inc()
	s.log.Info("transaction deleted", "txn_id", tx.ID, "payer", tx.Payer, "recipient", tx.Recipient)
	s.publish(txEvent(events.TypeTransactionDeleted, tx))
	return tx, nil
}

func (s *TransactionService) delete(ctx context.Context, id string) (models.Transaction, error) {
	if id == "" {
		return models.Transaction{}, invalid("id", "required")
	}
	cur, err := s.get(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if !cur.Active {
		return models.Transaction{}, storeErr(ctx, "transaction "+id, repo.ErrNotFound)
	}

	unlock, err := s.lockPairs(ctx, cur.Pair())
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tx, err := s.txns.MarkInactive(sctx, id, s.now())
	if err != nil {
		return models.Transaction{}, storeErr(ctx, "transaction "+id, err)
	}
	return tx, nil
}

// ----------------- Queries -----------------

func (s *TransactionService) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.get(ctx, id)
}

// List yields matching transactions oldest first. The query runs when the
// sequence is ranged over, and again on every range.
func (s *TransactionService) List(ctx context.Context, opt ListOptions) iter.Seq2[models.Transaction, error] {
	f := repo.Filter{
		Payer:           models.NormalizeUsername(opt.Payer),
		Recipient:       models.NormalizeUsername(opt.Recipient),
		IncludeInactive: opt.IncludeInactive,
	}
	u1, u2 := models.NormalizeUsername(opt.User1), models.NormalizeUsername(opt.User2)
	switch {
	case u1 != "" && u2 != "":
		p := models.NewPair(u1, u2)
		f.Pair = &p
	case u1 != "":
		f.Involving = u1
	case u2 != "":
		f.Involving = u2
	}

	return func(yield func(models.Transaction, error) bool) {
		txs, err := s.query(ctx, f)
		if err != nil {
			yield(models.Transaction{}, s.fail("list", err))
			return
		}
		for _, tx := range txs {
			if !yield(tx, nil) {
				return
			}
		}
	}
}
