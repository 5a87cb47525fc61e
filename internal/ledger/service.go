package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Service is the single credit ledger service. Every call site that touches
// credits (charge reconciliation, usage billing, admin tooling, migration)
// is a client of this one interface; there is exactly one implementation.
type Service struct {
	store Store
	cache *BalanceCache
	log   *slog.Logger

	// clock is injectable for deterministic tests.
	clock func() time.Time

	historyLimit int
}

type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithBalanceCache attaches the optional Redis read cache.
func WithBalanceCache(c *BalanceCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithHistoryLimit caps GetHistory reads.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func NewService(store Store, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:        store,
		log:          log,
		clock:        time.Now,
		historyLimit: 50,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddCredits credits the account and returns the new balance.
// txType must be a credit type (bonus, charge, refund, admin_add).
func (s *Service) AddCredits(ctx context.Context, userID string, amount int64, description string, txType TransactionType, chargeRef string) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	if !IsCreditType(txType) {
		return 0, ErrInvalidArgument
	}
	if description == "" {
		description = fmt.Sprintf("credits added: %d", amount)
	}

	entry, err := s.apply(ctx, ApplyInput{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		ChargeRef:   chargeRef,
		Description: description,
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("credits added",
		"user_id", userID,
		"amount", amount,
		"type", string(txType),
		"balance", entry.BalanceAfter,
	)
	return entry.BalanceAfter, nil
}

// ConsumeCredits debits the account and returns the new balance. A request
// the account cannot cover fails with *InsufficientBalanceError and leaves
// the balance unchanged; that is a normal outcome, not a system error.
func (s *Service) ConsumeCredits(ctx context.Context, userID string, amount int64, description string) (int64, error) {
	return s.debit(ctx, userID, amount, description, TransactionTypeUsage)
}

// AdminSubtractCredits is the operator-initiated debit. Same balance rules as
// ConsumeCredits; recorded under its own transaction type for audit.
func (s *Service) AdminSubtractCredits(ctx context.Context, userID string, amount int64, description string) (int64, error) {
	return s.debit(ctx, userID, amount, description, TransactionTypeAdminSubtract)
}

func (s *Service) debit(ctx context.Context, userID string, amount int64, description string, txType TransactionType) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	if description == "" {
		description = fmt.Sprintf("credits consumed: %d", amount)
	}

	entry, err := s.apply(ctx, ApplyInput{
		UserID:      userID,
		Amount:      -amount,
		Type:        txType,
		Description: description,
	})
	if err != nil {
		if IsInsufficientBalance(err) {
			insufficientBalanceTotal.Inc()
			// Expected business outcome; keep it out of error logs.
			s.log.Debug("consume rejected", "user_id", userID, "requested", amount)
		}
		return 0, err
	}

	s.log.Info("credits consumed",
		"user_id", userID,
		"amount", amount,
		"type", string(txType),
		"balance", entry.BalanceAfter,
	)
	return entry.BalanceAfter, nil
}

func (s *Service) apply(ctx context.Context, in ApplyInput) (Transaction, error) {
	in.Now = s.clock().UTC()

	timer := prometheus.NewTimer(applyDuration)
	entry, err := s.store.Apply(ctx, in)
	timer.ObserveDuration()
	if err != nil {
		return Transaction{}, err
	}

	transactionsTotal.WithLabelValues(string(entry.Type)).Inc()
	// Best-effort cache refresh; the ledger row is authoritative.
	_ = s.cache.Set(ctx, in.UserID, entry.BalanceAfter)
	return entry, nil
}

// GetBalance returns 0 for unknown accounts without creating them.
func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	if bal, ok := s.cache.Get(ctx, userID); ok {
		return bal, nil
	}
	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.cache.Set(ctx, userID, bal)
	return bal, nil
}

// AccountExists reports whether a ledger account row exists, without
// creating one.
func (s *Service) AccountExists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidArgument
	}
	_, ok, err := s.store.GetAccount(ctx, userID)
	return ok, err
}

// GetHistory returns transactions newest first. limit <= 0 or above the
// configured cap falls back to the cap.
func (s *Service) GetHistory(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.store.History(ctx, userID, limit)
}

// MigrationOutcome reports what MigrateLegacyBalance did.
type MigrationOutcome struct {
	Migrated bool  `json:"migrated"`
	Balance  int64 `json:"balance"`
}

// MigrateLegacyBalance seeds the unified account from a legacy balance field.
// Idempotent: if the account already exists, nothing is written and the
// outcome reports Migrated=false with the current balance.
func (s *Service) MigrateLegacyBalance(ctx context.Context, userID string, legacyAmount int64, description string) (MigrationOutcome, error) {
	if userID == "" || legacyAmount < 0 {
		return MigrationOutcome{}, ErrInvalidArgument
	}
	if description == "" {
		description = "legacy balance migration"
	}

	now := s.clock().UTC()
	created, err := s.store.MigrateLegacy(ctx, userID, legacyAmount, description, now)
	if err != nil {
		return MigrationOutcome{}, err
	}

	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return MigrationOutcome{}, err
	}
	if created {
		transactionsTotal.WithLabelValues(string(TransactionTypeBonus)).Inc()
		_ = s.cache.Set(ctx, userID, bal)
		s.log.Info("legacy balance migrated", "user_id", userID, "amount", legacyAmount)
	}
	return MigrationOutcome{Migrated: created, Balance: bal}, nil
}

// VerifyIntegrity recomputes the ledger sum for an account. On mismatch the
// account is frozen (halting further writes) and an *IntegrityError is
// returned for operator intervention. It never rewrites the balance.
func (s *Service) VerifyIntegrity(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	acct, ok, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	sum, err := s.store.SumTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if sum == acct.Balance {
		return nil
	}

	integrityViolationsTotal.Inc()
	if err := s.store.Freeze(ctx, userID, s.clock().UTC()); err != nil {
		s.log.Error("freeze after integrity violation failed", "user_id", userID, "err", err)
	}
	s.log.Error("ledger integrity violation",
		"user_id", userID,
		"balance", acct.Balance,
		"ledger_sum", sum,
	)
	return &IntegrityError{UserID: userID, Balance: acct.Balance, LedgerSum: sum}
}

// PurgeAccount removes the account and its transactions. Admin-only; the one
// sanctioned deletion path in the system.
func (s *Service) PurgeAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	if err := s.store.Purge(ctx, userID); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, userID)
	s.log.Info("account purged", "user_id", userID)
	return nil
}
