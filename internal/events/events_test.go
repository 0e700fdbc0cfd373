package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, Channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb)
	require.NoError(t, pub.Publish(ctx, Event{
		Type:          TypeTransactionCreated,
		TransactionID: "t1",
		Payer:         "alice",
		Recipient:     "bob",
		Amount:        decimal.RequireFromString("12.50"),
	}))

	select {
	case msg := <-sub.Channel():
		var e Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		assert.Equal(t, TypeTransactionCreated, e.Type)
		assert.Equal(t, "bob", e.Recipient)
		assert.True(t, e.Amount.Equal(decimal.RequireFromString("12.5")))
		assert.False(t, e.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestRedisPublisherDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := NewRedisPublisher(rdb).Publish(context.Background(), Event{Type: TypeLedgerSplit})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
