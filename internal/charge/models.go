package charge

import "time"

// Charge is one funding attempt against the external payment gateway.
//
// Lifecycle: created pending, transitions exactly once into a terminal state.
// succeeded is the only terminal state that triggers a ledger credit, and the
// compare-and-swap in the repository guarantees at most one caller observes
// that transition even under concurrent webhook/confirm delivery.
type Charge struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// RequestedAmount is the payment amount in minor currency units.
	RequestedAmount int64 `json:"requested_amount" db:"requested_amount"`
	// CreditAmount is the number of credits granted on success.
	CreditAmount int64 `json:"credit_amount" db:"credit_amount"`

	GatewayIntentID     string `json:"gateway_intent_id" db:"gateway_intent_id"`
	GatewayClientSecret string `json:"gateway_client_secret,omitempty" db:"gateway_client_secret"`

	Status       Status `json:"status" db:"status"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further transition is legal.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Option is a purchasable charge preset (price, credits, optional bonus).
type Option struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`

	// Price in minor currency units.
	Price int64 `json:"price" db:"price"`

	Credits      int64 `json:"credits" db:"credits"`
	BonusCredits int64 `json:"bonus_credits" db:"bonus_credits"`

	DisplayOrder int  `json:"display_order" db:"display_order"`
	Popular      bool `json:"popular" db:"popular"`
	Active       bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TotalCredits is base plus bonus.
func (o Option) TotalCredits() int64 { return o.Credits + o.BonusCredits }
