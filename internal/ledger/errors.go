package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAccountFrozen   = errors.New("account frozen")
)

// InsufficientBalanceError is a reported, non-retryable business failure.
// It is an expected outcome, not a system error; callers must not log it at
// error level or retry it.
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d, available %d", e.Requested, e.Available)
}

// IsInsufficientBalance reports whether err is an insufficient-balance failure.
func IsInsufficientBalance(err error) bool {
	var ib *InsufficientBalanceError
	return errors.As(err, &ib)
}

// IntegrityError signals a balance/ledger mismatch. This is fatal for the
// affected account: further writes are halted (the account is frozen) and an
// operator has to intervene. The number is never silently "fixed".
type IntegrityError struct {
	UserID  string
	Balance int64
	LedgerSum int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation for user %s: balance %d != transaction sum %d",
		e.UserID, e.Balance, e.LedgerSum)
}
