package charge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"credits-platform/internal/gateway"
	"credits-platform/pkg/logger"
)

// Tracker owns charge creation and state transitions. The reconciler is the
// only component allowed to grant credits; the tracker never touches the
// ledger.
type Tracker struct {
	repo     Repository
	gw       gateway.PaymentGateway
	log      *slog.Logger
	clock    func() time.Time
	currency string

	// dedupWindow coalesces repeated identical creations (double-click,
	// client retry) onto the same pending charge.
	dedupWindow time.Duration
}

type TrackerOption func(*Tracker)

func WithTrackerClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) { t.clock = clock }
}

func WithDedupWindow(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.dedupWindow = d }
}

func WithCurrency(currency string) TrackerOption {
	return func(t *Tracker) { t.currency = currency }
}

func NewTracker(repo Repository, gw gateway.PaymentGateway, log *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		repo:        repo,
		gw:          gw,
		log:         logger.Component(log, "charge-tracker"),
		clock:       time.Now,
		currency:    "jpy",
		dedupWindow: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create opens a pending charge and a matching gateway intent.
//
// If an identical pending charge (same user, amount and credits) was created
// inside the dedup window, that charge is returned instead and created is
// false. The caller can hand its client secret to the frontend again, so a
// double-submitted form never opens two payments.
func (t *Tracker) Create(ctx context.Context, userID string, requestedAmount, creditAmount int64) (Charge, bool, error) {
	if userID == "" {
		return Charge{}, false, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if requestedAmount <= 0 {
		return Charge{}, false, fmt.Errorf("%w: requested amount must be positive, got %d", ErrInvalidArgument, requestedAmount)
	}
	if creditAmount <= 0 {
		return Charge{}, false, fmt.Errorf("%w: credit amount must be positive, got %d", ErrInvalidArgument, creditAmount)
	}

	now := t.clock().UTC()

	if t.dedupWindow > 0 {
		existing, ok, err := t.repo.FindRecentPending(ctx, userID, requestedAmount, creditAmount, now.Add(-t.dedupWindow))
		if err != nil {
			return Charge{}, false, fmt.Errorf("dedup lookup: %w", err)
		}
		if ok {
			chargesDedupedTotal.Inc()
			t.log.InfoContext(ctx, "duplicate charge suppressed",
				"user_id", userID,
				"charge_id", existing.ID,
				"requested_amount", requestedAmount)
			return existing, false, nil
		}
	}

	intent, err := t.gw.CreateIntent(ctx, gateway.CreateIntentRequest{
		Amount:   requestedAmount,
		Currency: t.currency,
		Metadata: map[string]string{
			"user_id":       userID,
			"credit_amount": fmt.Sprintf("%d", creditAmount),
		},
	})
	if err != nil {
		return Charge{}, false, fmt.Errorf("create payment intent: %w", err)
	}

	c := Charge{
		ID:                  uuid.NewString(),
		UserID:              userID,
		RequestedAmount:     requestedAmount,
		CreditAmount:        creditAmount,
		GatewayIntentID:     intent.ID,
		GatewayClientSecret: intent.ClientSecret,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := t.repo.Create(ctx, c); err != nil {
		return Charge{}, false, fmt.Errorf("persist charge: %w", err)
	}

	chargesCreatedTotal.Inc()
	t.log.InfoContext(ctx, "charge created",
		"user_id", userID,
		"charge_id", c.ID,
		"gateway_intent_id", intent.ID,
		"requested_amount", requestedAmount,
		"credit_amount", creditAmount)
	return c, true, nil
}

// CreateFromOption opens a charge priced from a catalog option. Bonus
// credits are folded into the granted amount.
func (t *Tracker) CreateFromOption(ctx context.Context, userID, optionID string) (Charge, bool, error) {
	opt, ok, err := t.repo.GetOption(ctx, optionID)
	if err != nil {
		return Charge{}, false, fmt.Errorf("load charge option: %w", err)
	}
	if !ok || !opt.Active {
		return Charge{}, false, fmt.Errorf("%w: charge option %s", ErrNotFound, optionID)
	}
	return t.Create(ctx, userID, opt.Price, opt.TotalCredits())
}

// ListOptions returns the purchasable catalog, display order first.
func (t *Tracker) ListOptions(ctx context.Context) ([]Option, error) {
	return t.repo.ListActiveOptions(ctx)
}

func (t *Tracker) Get(ctx context.Context, chargeID string) (Charge, bool, error) {
	return t.repo.GetByID(ctx, chargeID)
}

// MarkSucceeded attempts pending → succeeded. applied=false means the charge
// was already finalized; the returned Charge reflects the stored state either
// way.
func (t *Tracker) MarkSucceeded(ctx context.Context, chargeID string) (Charge, bool, error) {
	return t.finalize(ctx, chargeID, StatusSucceeded, "")
}

// MarkFailed attempts pending → failed, recording the gateway's reason.
func (t *Tracker) MarkFailed(ctx context.Context, chargeID, reason string) (Charge, bool, error) {
	return t.finalize(ctx, chargeID, StatusFailed, reason)
}

// MarkCanceled attempts pending → canceled.
func (t *Tracker) MarkCanceled(ctx context.Context, chargeID, reason string) (Charge, bool, error) {
	return t.finalize(ctx, chargeID, StatusCanceled, reason)
}

func (t *Tracker) finalize(ctx context.Context, chargeID string, target Status, reason string) (Charge, bool, error) {
	now := t.clock().UTC()
	applied, err := t.repo.Finalize(ctx, chargeID, target, reason, now)
	if err != nil {
		return Charge{}, false, err
	}

	c, ok, err := t.repo.GetByID(ctx, chargeID)
	if err != nil {
		return Charge{}, false, err
	}
	if !ok {
		return Charge{}, false, ErrNotFound
	}

	if applied {
		chargesFinalizedTotal.WithLabelValues(string(target)).Inc()
		t.log.InfoContext(ctx, "charge finalized",
			"charge_id", chargeID,
			"user_id", c.UserID,
			"status", target)
	} else {
		t.log.DebugContext(ctx, "charge transition skipped, already finalized",
			"charge_id", chargeID,
			"status", c.Status,
			"attempted", target)
	}
	return c, applied, nil
}
