package migration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"credits-platform/internal/ledger"
)

func newTestMigrator(t *testing.T, sources ...Source) (*Migrator, *ledger.Service) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Unix(1700000000, 0).UTC()
	svc := ledger.NewService(ledger.NewMemoryStore(), log,
		ledger.WithClock(func() time.Time { return now }))
	return NewMigrator(svc, log, sources...), svc
}

func TestMigrateAllSeedsAccounts(t *testing.T) {
	ctx := context.Background()
	src := &MemorySource{SourceName: "phone_users", Items: []LegacyRecord{
		{UserID: "u1", Credits: 120},
		{UserID: "u2", Credits: 0},
		{UserID: "u3", Credits: 4500},
	}}
	m, svc := newTestMigrator(t, src)

	rep, err := m.MigrateAll(ctx, false)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if rep.Scanned != 3 || rep.Migrated != 3 || rep.Skipped != 0 || rep.Failed != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Credits != 4620 {
		t.Fatalf("expected 4620 credits migrated, got %d", rep.Credits)
	}

	if bal, _ := svc.GetBalance(ctx, "u1"); bal != 120 {
		t.Fatalf("u1 balance = %d, want 120", bal)
	}
	if bal, _ := svc.GetBalance(ctx, "u3"); bal != 4500 {
		t.Fatalf("u3 balance = %d, want 4500", bal)
	}

	// A zero legacy balance creates the account but writes no transaction.
	exists, _ := svc.AccountExists(ctx, "u2")
	if !exists {
		t.Fatal("u2 account should exist")
	}
	history, _ := svc.GetHistory(ctx, "u2", 10)
	if len(history) != 0 {
		t.Fatalf("expected no transactions for zero balance, got %d", len(history))
	}
}

func TestMigrateAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := &MemorySource{SourceName: "phone_users", Items: []LegacyRecord{
		{UserID: "u1", Credits: 120},
		{UserID: "u2", Credits: 50},
	}}
	m, svc := newTestMigrator(t, src)

	first, err := m.MigrateAll(ctx, false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The account changed between runs; the rerun must not touch it.
	if _, err := svc.ConsumeCredits(ctx, "u1", 20, "usage"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	second, err := m.MigrateAll(ctx, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Migrated != 0 || second.Skipped != first.Migrated {
		t.Fatalf("expected all skipped on rerun, got %+v", second)
	}
	if bal, _ := svc.GetBalance(ctx, "u1"); bal != 100 {
		t.Fatalf("rerun changed balance: %d", bal)
	}
}

func TestMigrateAllDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	src := &MemorySource{SourceName: "portal_profiles", Items: []LegacyRecord{
		{UserID: "p1", Credits: 300},
		{UserID: "p2", Credits: 700},
	}}
	m, svc := newTestMigrator(t, src)

	// p1 was already migrated earlier.
	if _, err := svc.MigrateLegacyBalance(ctx, "p1", 300, "migrated from portal_profiles"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rep, err := m.MigrateAll(ctx, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !rep.DryRun || rep.Migrated != 1 || rep.Skipped != 1 {
		t.Fatalf("unexpected dry-run report: %+v", rep)
	}

	if exists, _ := svc.AccountExists(ctx, "p2"); exists {
		t.Fatal("dry run must not create accounts")
	}
}

func TestMigrateAllCollectsBadRecords(t *testing.T) {
	ctx := context.Background()
	src := &MemorySource{SourceName: "phone_users", Items: []LegacyRecord{
		{UserID: "", Credits: 10},
		{UserID: "u-neg", Credits: -5},
		{UserID: "u-ok", Credits: 10},
	}}
	m, svc := newTestMigrator(t, src)

	rep, err := m.MigrateAll(ctx, false)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if rep.Failed != 2 || rep.Migrated != 1 || len(rep.Errors) != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if bal, _ := svc.GetBalance(ctx, "u-ok"); bal != 10 {
		t.Fatalf("good record not migrated: %d", bal)
	}
}

func TestMigrateAllMultipleSources(t *testing.T) {
	ctx := context.Background()
	phone := &MemorySource{SourceName: "phone_users", Items: []LegacyRecord{
		{UserID: "u1", Credits: 100},
	}}
	portal := &MemorySource{SourceName: "portal_profiles", Items: []LegacyRecord{
		{UserID: "p1", Credits: 200},
	}}
	m, svc := newTestMigrator(t, phone, portal)

	rep, err := m.MigrateAll(ctx, false)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if rep.Migrated != 2 {
		t.Fatalf("expected 2 migrated, got %+v", rep)
	}

	history, _ := svc.GetHistory(ctx, "p1", 1)
	if len(history) != 1 || history[0].Description != "migrated from portal_profiles" {
		t.Fatalf("expected origin in description, got %+v", history)
	}
}
