package charge

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("charge not found")
	ErrUnknownIntent   = errors.New("no charge for gateway intent")
)

// Repository is the persistence contract for charges and charge options.
//
// The two storage-level atomic primitives the whole replay story rests on:
// - Finalize is a compare-and-swap: it transitions pending → terminal and
//   reports whether this call performed the transition.
// - gateway_intent_id carries a unique constraint.
type Repository interface {
	Create(ctx context.Context, c Charge) error

	GetByID(ctx context.Context, id string) (Charge, bool, error)
	GetByIntentID(ctx context.Context, intentID string) (Charge, bool, error)

	// FindRecentPending returns the newest pending charge matching
	// (user_id, requested_amount, credit_amount) created at or after since.
	FindRecentPending(ctx context.Context, userID string, requestedAmount, creditAmount int64, since time.Time) (Charge, bool, error)

	// Finalize atomically applies "status == pending → status = target".
	// applied=false means another caller already finalized the charge; the
	// stored row is untouched in that case.
	Finalize(ctx context.Context, id string, target Status, errorMessage string, now time.Time) (applied bool, err error)

	// ListStalePending returns pending charges created before olderThan,
	// oldest first, for the reconciliation sweep.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Charge, error)

	ListActiveOptions(ctx context.Context) ([]Option, error)
	GetOption(ctx context.Context, id string) (Option, bool, error)
}
