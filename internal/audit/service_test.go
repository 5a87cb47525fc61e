package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{ActorUserID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCreditAdjustment(context.Background(), "admin1", "admin", "1.2.3.4", "u1", 500, "goodwill grant"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled: %+v", e)
	}
	if e.Type != EventTypeCreditAdjustment || e.TargetUserID != "u1" || e.Amount != 500 {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestService_PurgeAndMigrationEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAccountPurge(context.Background(), "admin1", "admin", "", "u1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := svc.LogMigrationRun(context.Background(), "admin1", "admin", "", `{"migrated":2}`); err != nil {
		t.Fatalf("migration: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[1].Metadata != `{"migrated":2}` {
		t.Fatalf("expected report metadata, got %+v", evs[1])
	}
}
