// Package migration seeds the unified credit ledger from legacy per-product
// balance columns. Runs are idempotent: a user whose ledger account already
// exists is skipped, so the migrator can be re-run after partial failures.
package migration

import (
	"context"
	"log/slog"

	"credits-platform/internal/ledger"
	"credits-platform/pkg/logger"
)

// LegacyRecord is one user balance read from a legacy store.
type LegacyRecord struct {
	UserID  string
	Credits int64
	// Origin names the legacy store the record came from, e.g. "phone_users".
	Origin string
}

// Source streams legacy balances. Implementations must return each user at
// most once.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]LegacyRecord, error)
}

// Report summarizes one migration run.
type Report struct {
	DryRun   bool  `json:"dry_run"`
	Scanned  int   `json:"scanned"`
	Migrated int   `json:"migrated"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Credits  int64 `json:"credits_migrated"`

	Errors []string `json:"errors,omitempty"`
}

type Migrator struct {
	ledger  *ledger.Service
	sources []Source
	log     *slog.Logger
}

func NewMigrator(svc *ledger.Service, log *slog.Logger, sources ...Source) *Migrator {
	return &Migrator{
		ledger:  svc,
		sources: sources,
		log:     logger.Component(log, "migration"),
	}
}

// MigrateAll walks every source and seeds ledger accounts. With dryRun set it
// only reports what would happen; nothing is written. Per-record failures are
// collected into the report instead of aborting the run.
func (m *Migrator) MigrateAll(ctx context.Context, dryRun bool) (Report, error) {
	rep := Report{DryRun: dryRun}

	for _, src := range m.sources {
		records, err := src.Records(ctx)
		if err != nil {
			return rep, err
		}
		m.log.InfoContext(ctx, "migrating legacy balances",
			"source", src.Name(), "records", len(records), "dry_run", dryRun)

		for _, rec := range records {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Scanned++

			if rec.UserID == "" || rec.Credits < 0 {
				rep.Failed++
				rep.Errors = append(rep.Errors, "invalid record in "+src.Name()+": user="+rec.UserID)
				continue
			}

			if dryRun {
				exists, err := m.ledger.AccountExists(ctx, rec.UserID)
				if err != nil {
					rep.Failed++
					rep.Errors = append(rep.Errors, rec.UserID+": "+err.Error())
					continue
				}
				if exists {
					rep.Skipped++
				} else {
					rep.Migrated++
					rep.Credits += rec.Credits
				}
				continue
			}

			out, err := m.ledger.MigrateLegacyBalance(ctx, rec.UserID, rec.Credits, "migrated from "+rec.Origin)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, rec.UserID+": "+err.Error())
				m.log.ErrorContext(ctx, "legacy migration failed",
					"source", src.Name(), "user_id", rec.UserID, "error", err)
				continue
			}
			if out.Migrated {
				rep.Migrated++
				rep.Credits += rec.Credits
			} else {
				rep.Skipped++
			}
		}
	}

	m.log.InfoContext(ctx, "migration run finished",
		"scanned", rep.Scanned,
		"migrated", rep.Migrated,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"dry_run", dryRun)
	return rep, nil
}
