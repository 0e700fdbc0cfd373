package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single IOU: Recipient owes Payer Amount.
// Amount is always positive; direction is carried by the roles.
type Transaction struct {
	ID             string          `json:"id"`
	Payer          string          `json:"payer"`
	Recipient      string          `json:"recipient"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Active         bool            `json:"active"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// Pair returns the unordered pair this transaction belongs to.
func (t Transaction) Pair() Pair { return NewPair(t.Payer, t.Recipient) }

// Involves reports whether user is either side of the transaction.
func (t Transaction) Involves(user string) bool {
	return t.Payer == user || t.Recipient == user
}
