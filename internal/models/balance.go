package models

import "github.com/shopspring/decimal"

// Pair is an unordered pair of users, stored with A <= B.
type Pair struct {
	A string `json:"user_a"`
	B string `json:"user_b"`
}

func NewPair(x, y string) Pair {
	if y < x {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}

// Key is the lock / map key of the pair.
func (p Pair) Key() string { return p.A + "|" + p.B }

// Has reports whether user is one side of the pair.
func (p Pair) Has(user string) bool { return p.A == user || p.B == user }

// PairBalance is the net position between two users.
// Owes/Owed are nil when the pair is even and Amount is zero.
type PairBalance struct {
	UserA  string          `json:"user_a"`
	UserB  string          `json:"user_b"`
	Owes   *string         `json:"owing_user"`
	Owed   *string         `json:"owed_user"`
	Amount decimal.Decimal `json:"amount"`
}

// Settled reports whether nobody owes anything.
func (b PairBalance) Settled() bool { return b.Owes == nil }

// SettleResult describes a settle call. Transaction is nil when the pair
// was already even and nothing was written.
type SettleResult struct {
	Cleared     PairBalance  `json:"cleared"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// SplitResult lists the transactions written by a split, in participant order.
type SplitResult struct {
	Payer        string          `json:"payer"`
	Amount       decimal.Decimal `json:"amount"`
	Transactions []Transaction   `json:"transactions"`
}

// Creditor is a user and the total they are owed across all counterparties.
type Creditor struct {
	Username string          `json:"username"`
	Amount   decimal.Decimal `json:"amount"`
}
