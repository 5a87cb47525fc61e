package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credits-platform/internal/audit"
	"credits-platform/internal/auth"
	"credits-platform/internal/charge"
	"credits-platform/internal/config"
	"credits-platform/internal/gateway"
	"credits-platform/internal/httpapi"
	"credits-platform/internal/ledger"
	"credits-platform/internal/migration"
	"credits-platform/pkg/logger"
	"credits-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Payment gateway: real HTTP adapter when configured, stub otherwise.
	var gw gateway.PaymentGateway
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewRESTGateway(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey)
	} else {
		log.Warn("gateway base url not set, using stub gateway")
		gw = gateway.NewStubGateway()
	}

	// Service wiring.
	creditSvc := ledger.NewService(ledger.NewPostgresStore(db), log,
		ledger.WithBalanceCache(ledger.NewBalanceCache(rdb, cfg.Ledger.BalanceCacheTTL)),
		ledger.WithHistoryLimit(cfg.Ledger.HistoryLimit))

	chargeRepo := charge.NewPostgresRepo(db)
	tracker := charge.NewTracker(chargeRepo, gw, log,
		charge.WithDedupWindow(cfg.Ledger.DedupWindow),
		charge.WithCurrency(cfg.Gateway.Currency))
	reconciler := charge.NewReconciler(chargeRepo, tracker, gw, creditSvc, log)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	migrator := migration.NewMigrator(creditSvc, log,
		migration.NewPhoneUserSource(db),
		migration.NewPortalUserSource(db))

	h := httpapi.Handlers{
		Credits:    creditSvc,
		Charges:    tracker,
		Reconciler: reconciler,
		Migrator:   migrator,
		Audit:      auditSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, httpapi.WebhookHandler{
		Reconciler: reconciler,
		Secret:     cfg.Gateway.WebhookSecret,
	}, auth.RequireAccessToken(authManager), db)

	// Background reconciliation of pending charges whose webhook was lost.
	if cfg.Ledger.SweepInterval > 0 {
		sweeper := charge.NewSweeper(chargeRepo, reconciler, log,
			cfg.Ledger.SweepInterval, cfg.Ledger.StalePendingAge)
		go sweeper.Run(rootCtx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "gateway", gw.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
