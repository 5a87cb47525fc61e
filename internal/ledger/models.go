package ledger

import "time"

// Account is the balance-holding record for one opaque user_id.
//
// Invariants:
// - balance == sum(amount) over the account's transactions, at all times.
// - balance never goes negative.
// - The balance column is never written except alongside a Transaction insert
//   in the same database transaction.
//
// The user_id may originate from any upstream identity system (phone auth,
// federated login, member portal). The ledger treats it as an opaque key.
type Account struct {
	UserID  string `json:"user_id" db:"user_id"`
	Balance int64  `json:"balance" db:"balance"`

	// Status active|frozen. Frozen accounts reject further writes; freezing
	// happens when an integrity check detects a balance/ledger mismatch.
	Status AccountStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
)

// Transaction is an immutable, append-only ledger entry.
//
// Rows are never updated or deleted in normal operation; the only path that
// removes them is an explicit admin purge of the whole account.
type Transaction struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type TransactionType `json:"type" db:"type"`

	// Amount is signed: positive = credit, negative = debit.
	Amount int64 `json:"amount" db:"amount"`

	// BalanceAfter snapshots the account balance at the instant of commit,
	// for audit and replay detection.
	BalanceAfter int64 `json:"balance_after" db:"balance_after"`

	// ChargeRef links the crediting transaction to its Charge, when the entry
	// was produced by a completed payment. At most one transaction of type
	// charge may ever reference a given charge.
	ChargeRef string `json:"charge_ref,omitempty" db:"charge_ref"`

	Description string `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TransactionType string

const (
	TransactionTypeCharge        TransactionType = "charge"
	TransactionTypeUsage         TransactionType = "usage"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypeBonus         TransactionType = "bonus"
	TransactionTypeAdminAdd      TransactionType = "admin_add"
	TransactionTypeAdminSubtract TransactionType = "admin_subtract"
)

// IsCreditType reports whether the type records a balance increase.
func IsCreditType(t TransactionType) bool {
	switch t {
	case TransactionTypeCharge, TransactionTypeRefund, TransactionTypeBonus, TransactionTypeAdminAdd:
		return true
	default:
		return false
	}
}

// IsDebitType reports whether the type records a balance decrease.
func IsDebitType(t TransactionType) bool {
	switch t {
	case TransactionTypeUsage, TransactionTypeAdminSubtract:
		return true
	default:
		return false
	}
}
