package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// It honors the same contract as the Postgres store: per-account
// serialization, fail-closed mutation, append-only transactions.
// Not intended for production use.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
}

type memAccount struct {
	// mu serializes mutations for one account; accounts do not share it,
	// so applies on different users never block each other.
	mu      sync.Mutex
	account Account
	txs     []Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

func (s *MemoryStore) get(userID string, create bool, now time.Time) *memAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok && create {
		a = &memAccount{account: Account{
			UserID:    userID,
			Status:    AccountStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.accounts[userID] = a
	}
	return a
}

func (s *MemoryStore) Apply(ctx context.Context, in ApplyInput) (Transaction, error) {
	a := s.get(in.UserID, true, in.Now)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.account.Status == AccountStatusFrozen {
		return Transaction{}, ErrAccountFrozen
	}

	newBalance := a.account.Balance + in.Amount
	if newBalance < 0 {
		return Transaction{}, &InsufficientBalanceError{Requested: -in.Amount, Available: a.account.Balance}
	}

	entry := Transaction{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Type:         in.Type,
		Amount:       in.Amount,
		BalanceAfter: newBalance,
		ChargeRef:    in.ChargeRef,
		Description:  in.Description,
		CreatedAt:    in.Now,
	}
	a.txs = append(a.txs, entry)
	a.account.Balance = newBalance
	a.account.UpdatedAt = in.Now
	return entry, nil
}

func (s *MemoryStore) GetBalance(ctx context.Context, userID string) (int64, error) {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account.Balance, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID string) (Account, bool, error) {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return Account{}, false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account, true, nil
}

func (s *MemoryStore) History(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Transaction, 0, limit)
	for i := len(a.txs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.txs[i])
	}
	return out, nil
}

func (s *MemoryStore) SumTransactions(ctx context.Context, userID string) (int64, error) {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum int64
	for _, t := range a.txs {
		sum += t.Amount
	}
	return sum, nil
}

func (s *MemoryStore) MigrateLegacy(ctx context.Context, userID string, amount int64, description string, now time.Time) (bool, error) {
	s.mu.Lock()
	if _, ok := s.accounts[userID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	a := &memAccount{account: Account{
		UserID:    userID,
		Balance:   amount,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	if amount > 0 {
		a.txs = append(a.txs, Transaction{
			ID:           uuid.NewString(),
			UserID:       userID,
			Type:         TransactionTypeBonus,
			Amount:       amount,
			BalanceAfter: amount,
			Description:  description,
			CreatedAt:    now,
		})
	}
	s.accounts[userID] = a
	s.mu.Unlock()
	return true, nil
}

func (s *MemoryStore) Freeze(ctx context.Context, userID string, now time.Time) error {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.account.Status = AccountStatusFrozen
	a.account.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, userID)
	return nil
}

// CorruptBalance deliberately desyncs the stored balance from the ledger.
// Test hook for integrity-check coverage.
func (s *MemoryStore) CorruptBalance(userID string, balance int64) {
	a := s.get(userID, false, time.Time{})
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.account.Balance = balance
}
