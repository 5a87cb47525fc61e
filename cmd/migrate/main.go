// Command migrate seeds the unified credit ledger from the legacy per-product
// balance tables. Safe to re-run: already-migrated users are skipped.
//
// Usage:
//
//	migrate [-dry-run] [-source phone|portal|all]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"credits-platform/internal/config"
	"credits-platform/internal/ledger"
	"credits-platform/internal/migration"
	"credits-platform/pkg/logger"
	"credits-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would be migrated without writing")
	source := flag.String("source", "all", "legacy source to migrate: phone, portal or all")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var sources []migration.Source
	switch *source {
	case "phone":
		sources = append(sources, migration.NewPhoneUserSource(db))
	case "portal":
		sources = append(sources, migration.NewPortalUserSource(db))
	case "all":
		sources = append(sources,
			migration.NewPhoneUserSource(db),
			migration.NewPortalUserSource(db))
	default:
		log.Error("unknown source", "source", *source)
		os.Exit(2)
	}

	svc := ledger.NewService(ledger.NewPostgresStore(db), log)
	migrator := migration.NewMigrator(svc, log, sources...)

	rep, err := migrator.MigrateAll(ctx, *dryRun)
	if err != nil {
		log.Error("migration run failed", "err", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(rep, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if rep.Failed > 0 {
		os.Exit(1)
	}
}
