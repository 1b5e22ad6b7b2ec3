package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists accounts and transactions.
//
// Row writes are atomic per row. DebitIfSufficient and Credit are the only
// balance mutations safe under concurrent payments against one account.
type Store interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	// EnsureAccount inserts account unless one exists for the user and
	// returns the stored row either way.
	EnsureAccount(ctx context.Context, account *Account) (*Account, error)
	// DebitIfSufficient subtracts amount iff the balance covers it. The returned
	// account reflects the stored state after the call.
	DebitIfSufficient(ctx context.Context, userID string, currency Currency, amount decimal.Decimal) (*Account, bool, error)
	Credit(ctx context.Context, userID string, currency Currency, amount decimal.Decimal) (*Account, error)

	SaveTransaction(ctx context.Context, tx *Transaction) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status Status) ([]Transaction, error)
}
