package gateway

import "context"

// PaymentGateway is the provider-agnostic contract for the external payment
// processor. The processor's SDK and wire format stay behind an adapter; no
// SDK calls are allowed outside this package.
//
// Delivery assumptions consumed by the reconciler:
// - Webhook events arrive at least once, unordered relative to the
//   synchronous confirm path, possibly duplicated.
// - GetIntentStatus is the authoritative read; webhook payloads only carry
//   the intent id worth re-checking.
type PaymentGateway interface {
	Name() string

	// CreateIntent opens a payment intent for the given amount in the
	// processor's minor currency units.
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)

	// GetIntentStatus reads the current authoritative status of an intent.
	GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
}

type CreateIntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Intent struct {
	ID string `json:"id"`
	// ClientSecret is handed to the frontend to complete the payment.
	ClientSecret string `json:"client_secret"`
}

type IntentStatus struct {
	ID       string            `json:"id"`
	State    IntentState       `json:"state"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// FailureReason is the processor-supplied human-readable reason, when any.
	FailureReason string `json:"failure_reason,omitempty"`
}

// IntentState is the normalized lifecycle state of a payment intent.
type IntentState string

const (
	IntentStatePending   IntentState = "pending"
	IntentStateSucceeded IntentState = "succeeded"
	IntentStateFailed    IntentState = "failed"
	IntentStateCanceled  IntentState = "canceled"
)

// NormalizeState maps raw processor statuses onto the four states the
// reconciler understands. Unknown statuses are treated as still-pending so a
// later poll can settle them.
func NormalizeState(raw string) IntentState {
	switch raw {
	case "succeeded":
		return IntentStateSucceeded
	case "canceled", "cancelled":
		return IntentStateCanceled
	case "failed", "payment_failed", "requires_payment_method_failed":
		return IntentStateFailed
	default:
		return IntentStatePending
	}
}
