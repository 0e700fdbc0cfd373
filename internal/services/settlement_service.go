package services

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/iou-backend/internal/events"
	"github.com/baharkarakas/iou-backend/internal/metrics"
	"github.com/baharkarakas/iou-backend/internal/models"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
)

const settleDescription = "settle up"

// SettlementService runs the compound operations. Each one holds the locks
// of every pair it touches from its first read to its last write.
type SettlementService struct {
	*ledger
}

func NewSettlementService(d Deps) *SettlementService {
	return &SettlementService{ledger: newLedger(d)}
}

type SplitInput struct {
	Payer          string
	Amount         decimal.Decimal
	Participants   []string
	Description    string
	ConversationID string
}

// ----------------- SETTLE -----------------

// Settle writes the one transaction that brings the pair to zero. An even
// pair is left untouched and the result carries no transaction.
func (s *SettlementService) Settle(ctx context.Context, a, b, conversationID string) (models.SettleResult, error) {
	res, err := s.settle(ctx, a, b, conversationID)
	if err != nil {
		return models.SettleResult{}, s.fail("settle", err)
	}
	if res.Transaction == nil {
		metrics.Settlements.WithLabelValues("noop").Inc()
		return res, nil
	}
	metrics.Settlements.WithLabelValues("settled").Inc()
	tx := *res.Transaction
	s.log.Info("pair settled",
		"txn_id", tx.ID, "payer", tx.Payer, "recipient", tx.Recipient, "amount", tx.Amount.String())
	s.publish(txEvent(events.TypeLedgerSettled, tx))
	return res, nil
}

func (s *SettlementService) settle(ctx context.Context, a, b, conversationID string) (models.SettleResult, error) {
	a, b, err := normalizePair(a, b)
	if err != nil {
		return models.SettleResult{}, err
	}
	if err := s.checkUsers(ctx, a, b); err != nil {
		return models.SettleResult{}, err
	}

	p := models.NewPair(a, b)
	unlock, err := s.lockPairs(ctx, p)
	if err != nil {
		return models.SettleResult{}, err
	}
	defer unlock()

	txs, err := s.query(ctx, repo.Filter{Pair: &p})
	if err != nil {
		return models.SettleResult{}, err
	}
	bal := NetBalance(a, b, txs)
	if bal.Settled() {
		return models.SettleResult{Cleared: bal}, nil
	}

	// the debtor pays back: it is the payer of the reconciling entry
	out, err := s.insert(ctx, []models.Transaction{{
		Payer:          *bal.Owes,
		Recipient:      *bal.Owed,
		Amount:         bal.Amount,
		Description:    settleDescription,
		ConversationID: conversationID,
		CreatedAt:      s.now(),
	}})
	if err != nil {
		return models.SettleResult{}, err
	}
	return models.SettleResult{Cleared: bal, Transaction: &out[0]}, nil
}

// ----------------- SPLIT -----------------

// Split bills every participant an equal share of Amount owed to Payer. All
// transactions are written or none are.
func (s *SettlementService) Split(ctx context.Context, in SplitInput) (models.SplitResult, error) {
	res, err := s.split(ctx, in)
	if err != nil {
		return models.SplitResult{}, s.fail("split", err)
	}
	metrics.Splits.Inc()
	participants := make([]string, len(res.Transactions))
	for i, tx := range res.Transactions {
		participants[i] = tx.Recipient
	}
	s.log.Info("split recorded",
		"payer", res.Payer, "amount", res.Amount.String(), "participants", len(participants))
	s.publish(events.Event{
		Type:           events.TypeLedgerSplit,
		Payer:          res.Payer,
		Amount:         res.Amount,
		ConversationID: in.ConversationID,
		Participants:   participants,
	})
	return res, nil
}

func (s *SettlementService) split(ctx context.Context, in SplitInput) (models.SplitResult, error) {
	payer := models.NormalizeUsername(in.Payer)
	if payer == "" {
		return models.SplitResult{}, invalid("payer", "required")
	}
	participants, err := normalizeParticipants(payer, in.Participants)
	if err != nil {
		return models.SplitResult{}, err
	}
	if err := validateAmount(in.Amount); err != nil {
		return models.SplitResult{}, err
	}
	shares, err := SplitShares(in.Amount, len(participants))
	if err != nil {
		return models.SplitResult{}, err
	}
	if err := s.checkUsers(ctx, append([]string{payer}, participants...)...); err != nil {
		return models.SplitResult{}, err
	}

	pairs := make([]models.Pair, len(participants))
	for i, p := range participants {
		pairs[i] = models.NewPair(payer, p)
	}
	unlock, err := s.lockPairs(ctx, pairs...)
	if err != nil {
		return models.SplitResult{}, err
	}
	defer unlock()

	now := s.now()
	batch := make([]models.Transaction, len(participants))
	for i, p := range participants {
		batch[i] = models.Transaction{
			Payer:          payer,
			Recipient:      p,
			Amount:         shares[i],
			Description:    in.Description,
			ConversationID: in.ConversationID,
			CreatedAt:      now,
		}
	}
	out, err := s.insert(ctx, batch)
	if err != nil {
		return models.SplitResult{}, err
	}
	return models.SplitResult{Payer: payer, Amount: in.Amount, Transactions: out}, nil
}

// normalizeParticipants returns the sorted, de-duplicated participant list.
func normalizeParticipants(payer string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = models.NormalizeUsername(p)
		if p == "" {
			return nil, invalid("participants", "empty username")
		}
		if p == payer {
			return nil, invalid("participants", "must not include the payer")
		}
		out = append(out, p)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil, invalid("participants", "at least one participant required")
	}
	return out, nil
}

// SplitShares divides amount into n shares of the smallest currency unit.
// The first share carries the whole remainder so the shares always sum to
// amount.
func SplitShares(amount decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, invalid("participants", "at least one participant required")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	units := amount.Shift(AmountScale).IntPart()
	base, rem := units/int64(n), units%int64(n)
	if base == 0 {
		return nil, invalid("amount", "too small to split between participants")
	}

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		u := base
		if i == 0 {
			u += rem
		}
		shares[i] = decimal.New(u, -AmountScale)
	}
	return shares, nil
}
