package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/iou-backend/internal/events"
	"github.com/baharkarakas/iou-backend/internal/lock"
	"github.com/baharkarakas/iou-backend/internal/metrics"
	"github.com/baharkarakas/iou-backend/internal/models"
	repo "github.com/baharkarakas/iou-backend/internal/repository"
	"github.com/baharkarakas/iou-backend/internal/worker"
)

// UserChecker is the part of the user directory the ledger needs.
type UserChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Deps wires the ledger services. Zero values get defaults.
type Deps struct {
	Transactions repo.Transactions
	Users        UserChecker
	Locker       lock.Locker
	Events       events.Publisher
	Pool         *worker.Pool // nil publishes inline
	Logger       *slog.Logger
	StoreTimeout time.Duration
	// IdempotencyTTL is how long an Idempotency-Key is remembered.
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

// defaultLocker serves every service built without a Locker, so they still
// exclude each other on the same pair.
var defaultLocker = lock.NewLocal(2 * time.Second)

// ledger holds what every service shares.
type ledger struct {
	txns    repo.Transactions
	users   UserChecker
	locker  lock.Locker
	events  events.Publisher
	pool    *worker.Pool
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func newLedger(d Deps) *ledger {
	l := &ledger{
		txns:    d.Transactions,
		users:   d.Users,
		locker:  d.Locker,
		events:  d.Events,
		pool:    d.Pool,
		log:     d.Logger,
		timeout: d.StoreTimeout,
		now:     d.Now,
	}
	if l.locker == nil {
		l.locker = defaultLocker
	}
	if l.events == nil {
		l.events = events.Nop{}
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.timeout <= 0 {
		l.timeout = 3 * time.Second
	}
	if l.now == nil {
		l.now = func() time.Time { return time.Now().UTC() }
	}
	return l
}

// ----------------- Helpers -----------------

func (l *ledger) lockPairs(ctx context.Context, pairs ...models.Pair) (func(), error) {
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key()
	}
	unlock, err := l.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, lockErr(ctx, err)
	}
	return unlock, nil
}

func (l *ledger) checkUsers(ctx context.Context, names ...string) error {
	for _, n := range names {
		sctx, cancel := context.WithTimeout(ctx, l.timeout)
		ok, err := l.users.Exists(sctx, n)
		cancel()
		if err != nil {
			return storeErr(ctx, "check user", err)
		}
		if !ok {
			return fmt.Errorf("user %q: %w", n, ErrNotFound)
		}
	}
	return nil
}

func (l *ledger) query(ctx context.Context, f repo.Filter) ([]models.Transaction, error) {
	sctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	txs, err := l.txns.Query(sctx, f)
	return txs, storeErr(ctx, "query transactions", err)
}

func (l *ledger) get(ctx context.Context, id string) (models.Transaction, error) {
	sctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	tx, err := l.txns.GetByID(sctx, id)
	if err != nil {
		return models.Transaction{}, storeErr(ctx, "transaction "+id, err)
	}
	return tx, nil
}

// insert writes txs as one all-or-nothing batch. Nothing is written if ctx is
// already done.
func (l *ledger) insert(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var (
		out []models.Transaction
		err error
	)
	if len(txs) == 1 {
		var tx models.Transaction
		tx, err = l.txns.Insert(sctx, txs[0])
		out = []models.Transaction{tx}
	} else {
		out, err = l.txns.InsertBatch(sctx, txs)
	}
	if err != nil {
		return nil, storeErr(ctx, "insert transaction", err)
	}
	metrics.TransactionsCreated.Add(float64(len(out)))
	return out, nil
}

func (l *ledger) fail(op string, err error) error {
	kind := errKind(err)
	metrics.LedgerFailures.WithLabelValues(op, kind).Inc()
	switch kind {
	case "store_unavailable", "internal":
		l.log.Error("ledger operation failed", "op", op, "kind", kind, "err", err)
	default:
		l.log.Debug("ledger operation rejected", "op", op, "kind", kind, "err", err)
	}
	return err
}

// publish hands e to the worker pool; a delivery failure never reaches the caller.
func (l *ledger) publish(e events.Event) {
	if e.At.IsZero() {
		e.At = l.now()
	}
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.events.Publish(ctx, e); err != nil {
			metrics.EventsDropped.Inc()
			l.log.Warn("event publish failed", "type", e.Type, "err", err)
		}
	}
	if l.pool == nil {
		send()
		return
	}
	if !l.pool.Submit(send) {
		metrics.EventsDropped.Inc()
		l.log.Warn("event dropped, worker queue unavailable", "type", e.Type)
	}
}

func txEvent(typ string, tx models.Transaction) events.Event {
	return events.Event{
		Type:           typ,
		TransactionID:  tx.ID,
		Payer:          tx.Payer,
		Recipient:      tx.Recipient,
		Amount:         tx.Amount,
		ConversationID: tx.ConversationID,
	}
}

// normalizePair validates two distinct usernames.
func normalizePair(a, b string) (string, string, error) {
	a, b = models.NormalizeUsername(a), models.NormalizeUsername(b)
	switch {
	case a == "":
		return "", "", invalid("user1", "required")
	case b == "":
		return "", "", invalid("user2", "required")
	case a == b:
		return "", "", invalid("user2", "must differ from user1")
	}
	return a, b, nil
}
