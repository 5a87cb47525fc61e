package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StubGateway is a no-op in-memory gateway for local development. Intents it
// creates stay pending until a test or a dev tool settles them.
// Not intended for production use.
type StubGateway struct {
	mu      sync.Mutex
	intents map[string]IntentStatus
	seq     int
}

func NewStubGateway() *StubGateway {
	return &StubGateway{intents: make(map[string]IntentStatus)}
}

func (g *StubGateway) Name() string { return "stub" }

func (g *StubGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, fmt.Errorf("stub gateway: amount must be positive, got %d", req.Amount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("pi_stub_%d_%d", time.Now().UnixNano(), g.seq)
	g.intents[id] = IntentStatus{
		ID:       id,
		State:    IntentStatePending,
		Amount:   req.Amount,
		Metadata: req.Metadata,
	}
	return Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *StubGateway) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[intentID]
	if !ok {
		return IntentStatus{}, fmt.Errorf("stub gateway: unknown intent %s", intentID)
	}
	return st, nil
}

// Settle moves a stub intent into a terminal state. Dev/test hook.
func (g *StubGateway) Settle(intentID string, state IntentState, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[intentID]
	if !ok {
		return
	}
	st.State = state
	st.FailureReason = reason
	g.intents[intentID] = st
}
