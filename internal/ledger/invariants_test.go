package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// The core accounting invariant: for every account, balance == sum of its
// transaction amounts, after any sequence of operations, including
// concurrent ones.

func checkInvariant(t *testing.T, store Store, userID string) {
	t.Helper()
	ctx := context.Background()

	bal, err := store.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	sum, err := store.SumTransactions(ctx, userID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if bal != sum {
		t.Fatalf("invariant broken for %s: balance %d != ledger sum %d", userID, bal, sum)
	}
	if bal < 0 {
		t.Fatalf("negative balance for %s: %d", userID, bal)
	}
}

func TestConcurrentAddsKeepInvariant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.AddCredits(ctx, "u1", 10, "", TransactionTypeBonus, ""); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	bal, _ := svc.GetBalance(ctx, "u1")
	if bal != workers*10 {
		t.Fatalf("expected %d, got %d", workers*10, bal)
	}
	checkInvariant(t, store, "u1")
}

func TestConcurrentMixedOpsKeepInvariant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := svc.AddCredits(ctx, "u1", 1000, "", TransactionTypeBonus, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = svc.AddCredits(ctx, "u1", 7, "", TransactionTypeBonus, "")
				return
			}
			// Some of these may hit insufficient balance; either way the
			// invariant has to hold.
			_, _ = svc.ConsumeCredits(ctx, "u1", 13, "load test")
		}()
	}
	wg.Wait()

	checkInvariant(t, store, "u1")
}

func TestConcurrentConsumesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := svc.AddCredits(ctx, "u1", 100, "", TransactionTypeBonus, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 30 workers racing to take 10 each from a balance of 100: exactly 10
	// must succeed.
	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.ConsumeCredits(ctx, "u1", 10, "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful consumes, got %d", succeeded)
	}
	bal, _ := svc.GetBalance(ctx, "u1")
	if bal != 0 {
		t.Fatalf("expected 0 balance, got %d", bal)
	}
	checkInvariant(t, store, "u1")
}

func TestAccountsDoNotBlockEachOther(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			userID := "user-a"
			if i%2 == 1 {
				userID = "user-b"
			}
			_, _ = svc.AddCredits(ctx, userID, 5, "", TransactionTypeBonus, "")
		}()
	}
	wg.Wait()

	checkInvariant(t, store, "user-a")
	checkInvariant(t, store, "user-b")
}
