package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storekeep/storekeep/internal/app"
	"github.com/storekeep/storekeep/internal/inventory"
	"github.com/storekeep/storekeep/internal/ledger"
	"github.com/storekeep/storekeep/internal/observability"
	"github.com/storekeep/storekeep/internal/partners"
	"github.com/storekeep/storekeep/internal/platform/cache"
	"github.com/storekeep/storekeep/internal/platform/db"
	"github.com/storekeep/storekeep/internal/posting"
	"github.com/storekeep/storekeep/internal/shared"
	"github.com/storekeep/storekeep/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	alloc := ledger.NewSequenceAllocator(logger, cfg.NumberFallback)
	alloc.WithFallbackHook(metrics.ObserveFallbackNumber)
	writer := ledger.NewWriter(alloc)
	ledgerRepo := ledger.NewRepository(pool)
	ledgerHandler := ledger.NewHandler(logger, ledgerRepo)

	partnersRepo := partners.NewRepository(pool)
	balanceTracker := partners.NewBalanceTracker()
	partnersHandler := partners.NewHandler(logger, partnersRepo)
	var balanceCache *partners.BalanceCache
	if redisClient != nil {
		balanceCache = partners.NewBalanceCache(redisClient, 30*time.Second)
		partnersHandler.WithCache(balanceCache)
	}

	inventoryRepo := inventory.NewRepository(pool)
	quantityTracker := inventory.NewQuantityTracker()
	inventoryService := inventory.NewService(inventoryRepo, quantityTracker, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, inventoryRepo)

	postingRepo := posting.NewRepository(pool)
	postingService := posting.NewService(postingRepo, writer, balanceTracker, quantityTracker, auditLogger, logger)
	postingService.WithMetrics(metrics)
	postingService.WithIdempotency(idempotencyStore)
	if balanceCache != nil {
		postingService.WithCache(balanceCache)
	}
	postingHandler := posting.NewHandler(logger, postingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PostingHandler:   postingHandler,
		LedgerHandler:    ledgerHandler,
		InventoryHandler: inventoryHandler,
		PartnersHandler:  partnersHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
