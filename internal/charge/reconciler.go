package charge

import (
	"context"
	"fmt"
	"log/slog"

	"credits-platform/internal/gateway"
	"credits-platform/internal/ledger"
	"credits-platform/pkg/logger"
)

// CreditGranter is the slice of the ledger the reconciler needs.
// *ledger.Service satisfies it.
type CreditGranter interface {
	AddCredits(ctx context.Context, userID string, amount int64, description string, txType ledger.TransactionType, chargeRef string) (int64, error)
}

// Reconciler is the single place charge state meets the ledger. Every path
// that learns a payment outcome (webhook, synchronous confirm, stale-pending
// sweep) funnels through Reconcile, so the double-credit guard lives in
// exactly one function.
type Reconciler struct {
	repo    Repository
	tracker *Tracker
	gw      gateway.PaymentGateway
	credits CreditGranter
	log     *slog.Logger
}

func NewReconciler(repo Repository, tracker *Tracker, gw gateway.PaymentGateway, credits CreditGranter, log *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		tracker: tracker,
		gw:      gw,
		credits: credits,
		log:     logger.Component(log, "charge-reconciler"),
	}
}

// Outcome reports what a reconciliation run did.
type Outcome struct {
	Charge Charge `json:"charge"`
	// Credited is true only for the one call that transitioned the charge
	// to succeeded and granted its credits.
	Credited bool `json:"credited"`
}

// Reconcile re-reads the intent's authoritative state from the gateway and
// converges the stored charge onto it. Safe to call any number of times for
// the same intent: replays and races collapse onto the repository's
// compare-and-swap, so credits are granted at most once.
func (r *Reconciler) Reconcile(ctx context.Context, intentID string) (Outcome, error) {
	if intentID == "" {
		return Outcome{}, fmt.Errorf("%w: intent id is required", ErrInvalidArgument)
	}

	c, ok, err := r.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load charge for intent %s: %w", intentID, err)
	}
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownIntent, intentID)
	}

	// Already terminal: nothing to converge, skip the gateway round trip.
	if c.Status.Terminal() {
		reconcileOutcomesTotal.WithLabelValues("replay").Inc()
		r.log.DebugContext(ctx, "reconcile replay on finalized charge",
			"charge_id", c.ID, "status", c.Status)
		return Outcome{Charge: c}, nil
	}

	st, err := r.gw.GetIntentStatus(ctx, intentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("read intent %s status: %w", intentID, err)
	}

	switch st.State {
	case gateway.IntentStateSucceeded:
		return r.settleSucceeded(ctx, c)

	case gateway.IntentStateFailed:
		c, applied, err := r.tracker.MarkFailed(ctx, c.ID, st.FailureReason)
		if err != nil {
			return Outcome{}, err
		}
		r.countSettled(applied, "failed")
		return Outcome{Charge: c}, nil

	case gateway.IntentStateCanceled:
		c, applied, err := r.tracker.MarkCanceled(ctx, c.ID, st.FailureReason)
		if err != nil {
			return Outcome{}, err
		}
		r.countSettled(applied, "canceled")
		return Outcome{Charge: c}, nil

	default:
		// Still pending at the gateway; a later webhook or sweep will settle it.
		reconcileOutcomesTotal.WithLabelValues("pending").Inc()
		return Outcome{Charge: c}, nil
	}
}

func (r *Reconciler) settleSucceeded(ctx context.Context, c Charge) (Outcome, error) {
	updated, applied, err := r.tracker.MarkSucceeded(ctx, c.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !applied {
		// Lost the race, or a webhook replay. The winner granted the credits.
		reconcileOutcomesTotal.WithLabelValues("replay").Inc()
		return Outcome{Charge: updated}, nil
	}

	desc := fmt.Sprintf("Credit purchase (%d credits)", updated.CreditAmount)
	if _, err := r.credits.AddCredits(ctx, updated.UserID, updated.CreditAmount, desc, ledger.TransactionTypeCharge, updated.ID); err != nil {
		// The charge is already succeeded; surfacing the error gets the
		// grant retried by an operator rather than silently dropped.
		r.log.ErrorContext(ctx, "credit grant failed after charge success",
			"charge_id", updated.ID,
			"user_id", updated.UserID,
			"credit_amount", updated.CreditAmount,
			"error", err)
		return Outcome{Charge: updated}, fmt.Errorf("grant credits for charge %s: %w", updated.ID, err)
	}

	reconcileOutcomesTotal.WithLabelValues("credited").Inc()
	r.log.InfoContext(ctx, "charge succeeded, credits granted",
		"charge_id", updated.ID,
		"user_id", updated.UserID,
		"credit_amount", updated.CreditAmount)
	return Outcome{Charge: updated, Credited: true}, nil
}

func (r *Reconciler) countSettled(applied bool, outcome string) {
	if applied {
		reconcileOutcomesTotal.WithLabelValues(outcome).Inc()
	} else {
		reconcileOutcomesTotal.WithLabelValues("replay").Inc()
	}
}
