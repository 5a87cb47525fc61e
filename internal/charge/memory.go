package charge

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// The same compare-and-swap semantics as the SQL implementation, guarded by
// a single mutex.
type MemoryRepo struct {
	mu      sync.Mutex
	charges map[string]Charge
	options map[string]Option
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		charges: make(map[string]Charge),
		options: make(map[string]Option),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, c Charge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.charges {
		if existing.GatewayIntentID == c.GatewayIntentID {
			return ErrInvalidArgument
		}
	}
	r.charges[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Charge, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[id]
	return c, ok, nil
}

func (r *MemoryRepo) GetByIntentID(ctx context.Context, intentID string) (Charge, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.charges {
		if c.GatewayIntentID == intentID {
			return c, true, nil
		}
	}
	return Charge{}, false, nil
}

func (r *MemoryRepo) FindRecentPending(ctx context.Context, userID string, requestedAmount, creditAmount int64, since time.Time) (Charge, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest Charge
	found := false
	for _, c := range r.charges {
		if c.UserID != userID || c.Status != StatusPending {
			continue
		}
		if c.RequestedAmount != requestedAmount || c.CreditAmount != creditAmount {
			continue
		}
		if c.CreatedAt.Before(since) {
			continue
		}
		if !found || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
			found = true
		}
	}
	return newest, found, nil
}

func (r *MemoryRepo) Finalize(ctx context.Context, id string, target Status, errorMessage string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.charges[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != StatusPending {
		return false, nil
	}
	c.Status = target
	c.ErrorMessage = errorMessage
	c.UpdatedAt = now
	completed := now
	c.CompletedAt = &completed
	r.charges[id] = c
	return true, nil
}

func (r *MemoryRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Charge
	for _, c := range r.charges {
		if c.Status == StatusPending && c.CreatedAt.Before(olderThan) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListActiveOptions(ctx context.Context) ([]Option, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Option
	for _, o := range r.options {
		if o.Active {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *MemoryRepo) GetOption(ctx context.Context, id string) (Option, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.options[id]
	return o, ok, nil
}

// PutOption seeds or replaces a charge option. Test/seed hook.
func (r *MemoryRepo) PutOption(o Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[o.ID] = o
}
