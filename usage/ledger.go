/*
ledger.go - Transaction records and the store contract

PURPOSE:
  The ledger is the system of record for card transactions, maintained by
  the surrounding product. The engine core only ever READS aggregates from
  it (tracker.go); the write operations here exist for the administrative
  surface and are the events that trigger cache invalidation.
*/
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfolio/reward-engine/engine"
)

// ErrTransactionNotFound is returned when a referenced transaction
// doesn't exist.
var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is one recorded card transaction. BonusPoints is the bonus
// granted when the transaction was evaluated, consumed against monthly
// caps in later evaluations.
type Transaction struct {
	ID              string
	CardID          string
	Amount          decimal.Decimal
	Currency        string
	MCC             string
	MerchantName    string
	Category        string
	TransactionType engine.TransactionType
	BonusPoints     decimal.Decimal
	OccurredAt      time.Time
	CreatedAt       time.Time
}

// TransactionStore extends the read-only Ledger with the write operations
// of the administrative surface. Every write must be followed by a
// Tracker.Invalidate for the affected card.
type TransactionStore interface {
	Ledger

	AddTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id string) (cardID string, err error)
	TransactionsByCard(ctx context.Context, cardID string, from, to time.Time) ([]Transaction, error)
}
