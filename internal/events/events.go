// Package events publishes ledger notifications for the chat bot.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const Channel = "iou:events"

const (
	TypeTransactionCreated = "transaction.created"
	TypeTransactionDeleted = "transaction.deleted"
	TypeLedgerSettled      = "ledger.settled"
	TypeLedgerSplit        = "ledger.split"
)

type Event struct {
	Type           string          `json:"event_type"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	Payer          string          `json:"payer"`
	Recipient      string          `json:"recipient,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	ConversationID string          `json:"conversation_id,omitempty"`
	// Participants is set for splits only.
	Participants []string  `json:"participants,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: Channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}
