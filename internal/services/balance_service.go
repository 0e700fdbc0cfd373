package services

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/iou-backend/internal/models"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
)

// BalanceService derives balances from the active transactions on every
// call. Nothing is stored.
type BalanceService struct {
	*ledger
}

func NewBalanceService(d Deps) *BalanceService {
	return &BalanceService{ledger: newLedger(d)}
}

// Pairwise returns the net position between a and b.
func (s *BalanceService) Pairwise(ctx context.Context, a, b string) (models.PairBalance, error) {
	a, b, err := normalizePair(a, b)
	if err != nil {
		return models.PairBalance{}, s.fail("pairwise", err)
	}
	p := models.NewPair(a, b)
	txs, err := s.query(ctx, repo.Filter{Pair: &p})
	if err != nil {
		return models.PairBalance{}, s.fail("pairwise", err)
	}
	return NetBalance(a, b, txs), nil
}

// Summary returns one balance per pair with at least one active
// transaction, ordered by pair.
func (s *BalanceService) Summary(ctx context.Context) ([]models.PairBalance, error) {
	txs, err := s.query(ctx, repo.Filter{})
	if err != nil {
		return nil, s.fail("summary", err)
	}
	return Summarize(txs), nil
}

// MaxOwed returns the user owed the most in aggregate. ok is false when
// nobody is owed anything.
func (s *BalanceService) MaxOwed(ctx context.Context) (c models.Creditor, ok bool, err error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return models.Creditor{}, false, err
	}
	c, ok = TopCreditor(sum)
	return c, ok, nil
}

// NetBalance reduces the active transactions between a and b to a balance
// reported from a's side. Other transactions are ignored.
func NetBalance(a, b string, txs []models.Transaction) models.PairBalance {
	net := decimal.Zero // > 0: b owes a
	for _, tx := range txs {
		if !tx.Active {
			continue
		}
		switch {
		case tx.Payer == a && tx.Recipient == b:
			net = net.Add(tx.Amount)
		case tx.Payer == b && tx.Recipient == a:
			net = net.Sub(tx.Amount)
		}
	}
	return newPairBalance(a, b, net)
}

func newPairBalance(a, b string, net decimal.Decimal) models.PairBalance {
	pb := models.PairBalance{UserA: a, UserB: b, Amount: net.Abs()}
	switch net.Sign() {
	case 1:
		pb.Owes, pb.Owed = &b, &a
	case -1:
		pb.Owes, pb.Owed = &a, &b
	default:
		pb.Amount = decimal.Zero
	}
	return pb
}

// Summarize groups the active transactions by unordered pair. Each balance is
// reported with UserA < UserB.
func Summarize(txs []models.Transaction) []models.PairBalance {
	nets := make(map[models.Pair]decimal.Decimal)
	for _, tx := range txs {
		if !tx.Active {
			continue
		}
		p := tx.Pair()
		amt := tx.Amount
		if tx.Payer != p.A {
			amt = amt.Neg()
		}
		nets[p] = nets[p].Add(amt)
	}

	pairs := make([]models.Pair, 0, len(nets))
	for p := range nets {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(x, y models.Pair) int {
		return cmp.Or(cmp.Compare(x.A, y.A), cmp.Compare(x.B, y.B))
	})

	out := make([]models.PairBalance, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, newPairBalance(p.A, p.B, nets[p]))
	}
	return out
}

// TopCreditor sums what each user is owed over all pairs and returns the
// largest. Ties go to the lexicographically smallest username.
func TopCreditor(balances []models.PairBalance) (models.Creditor, bool) {
	owed := make(map[string]decimal.Decimal)
	for _, b := range balances {
		if b.Owed == nil || !b.Amount.IsPositive() {
			continue
		}
		owed[*b.Owed] = owed[*b.Owed].Add(b.Amount)
	}

	var (
		best  models.Creditor
		found bool
	)
	for user, amt := range owed {
		switch {
		case !found, amt.GreaterThan(best.Amount), amt.Equal(best.Amount) && user < best.Username:
			best, found = models.Creditor{Username: user, Amount: amt}, true
		}
	}
	return best, found
}
