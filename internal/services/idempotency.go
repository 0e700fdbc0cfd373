package services

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeys    = 10_000
)

// idemRequest is what an Idempotency-Key is bound to on first use.
type idemRequest struct {
	Payer          string
	Recipient      string
	Amount         decimal.Decimal
	Description    string
	ConversationID string
}

func (r idemRequest) same(o idemRequest) bool {
	return r.Payer == o.Payer && r.Recipient == o.Recipient && r.Amount.Equal(o.Amount) &&
		r.Description == o.Description && r.ConversationID == o.ConversationID
}

type idemEntry struct {
	req     idemRequest
	txID    string // empty while the first write is in flight
	expires time.Time
}

// idemCache remembers Idempotency-Keys process-wide for ttl, holding at most
// max keys. Keys are global, not per pair.
type idemCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]*idemEntry
}

func newIdemCache(ttl time.Duration, max int) *idemCache {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if max <= 0 {
		max = maxIdempotencyKeys
	}
	return &idemCache{ttl: ttl, max: max, entries: make(map[string]*idemEntry)}
}

// reserve claims key for req. It returns the recorded transaction id when
// the key was already used for the same request, or "" when the caller now
// owns the key and must write, then call complete or release.
func (c *idemCache) reserve(key string, req idemRequest, now time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && now.Before(e.expires) {
		switch {
		case !e.req.same(req):
			return "", invalid("idempotency_key", "already used for a different request")
		case e.txID == "":
			return "", errIdemInFlight
		}
		return e.txID, nil
	}
	if len(c.entries) >= c.max {
		c.evict(now)
	}
	c.entries[key] = &idemEntry{req: req, expires: now.Add(c.ttl)}
	return "", nil
}

func (c *idemCache) complete(key, txID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.txID = txID
	}
}

func (c *idemCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.txID == "" {
		delete(c.entries, key)
	}
}

// evict drops expired keys, or the oldest completed one when none expired.
func (c *idemCache) evict(now time.Time) {
	var (
		oldest    string
		oldestExp time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			continue
		}
		if e.txID != "" && (oldest == "" || e.expires.Before(oldestExp)) {
			oldest, oldestExp = k, e.expires
		}
	}
	if len(c.entries) >= c.max && oldest != "" {
		delete(c.entries, oldest)
	}
}

func (c *idemCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
