package ledger

import (
	"context"
	"time"
)

// ApplyInput describes one balance mutation. Apply is the only primitive that
// changes a balance; everything else in the service delegates to it.
type ApplyInput struct {
	UserID string
	// Amount is signed: positive credits, negative debits.
	Amount      int64
	Type        TransactionType
	ChargeRef   string
	Description string
	// Now is the commit timestamp; injected so services control the clock.
	Now time.Time
}

// Store is the persistence contract for accounts and the transaction log.
//
// Concurrency contract:
// - Two concurrent Apply calls for the same user_id must serialize (lock or
//   retry) so the balance invariant never momentarily breaks.
// - Apply calls for different user_ids must not block each other.
// - Apply fails closed: on any storage error no partial state (balance
//   without transaction, or vice versa) may persist.
type Store interface {
	// Apply atomically: creates the account if absent, serializes against
	// concurrent mutations of the same account, rejects results below zero
	// with *InsufficientBalanceError, rejects frozen accounts with
	// ErrAccountFrozen, writes the new balance and appends the transaction
	// with balance_after equal to the new balance.
	Apply(ctx context.Context, in ApplyInput) (Transaction, error)

	// GetBalance returns 0 for an unknown account without creating it.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// GetAccount returns the account row; ok=false when it does not exist.
	GetAccount(ctx context.Context, userID string) (Account, bool, error)

	// History returns transactions newest first, at most limit rows.
	History(ctx context.Context, userID string, limit int) ([]Transaction, error)

	// SumTransactions recomputes the ledger sum for integrity checks.
	SumTransactions(ctx context.Context, userID string) (int64, error)

	// MigrateLegacy creates the account with the given starting balance and a
	// single seeding transaction, atomically. If the account already exists it
	// is a no-op and created=false; this is what makes migration re-runnable.
	MigrateLegacy(ctx context.Context, userID string, amount int64, description string, now time.Time) (created bool, err error)

	// Freeze halts further writes to the account.
	Freeze(ctx context.Context, userID string, now time.Time) error

	// Purge removes the account and all of its transactions. Admin-only.
	Purge(ctx context.Context, userID string) error
}
