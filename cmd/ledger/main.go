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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/attachments"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/vouchers"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConn)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	redisOpts := cfg.Redis().QueueOpt()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	accountService := accounts.NewService(accounts.NewRepository(dbpool))
	periodService := periods.NewService(periods.NewRepository(dbpool), auditLogger, jobClient)

	reportService := reports.NewService(accountService, reports.NewRepository(dbpool), reports.NewCache(redisClient, cfg.ReportCacheTTL))
	reportService.WithBuilds(metrics)
	reportService.WithDefaultPerPage(cfg.StatementDefaultPerPage)

	attachmentStore := attachments.NewStore(attachments.NewRedisBlobs(redisClient), attachments.Options{
		MaxBytes:   cfg.AttachmentMaxBytes,
		SessionTTL: cfg.AttachmentSessionTTL,
		Gauge:      metrics,
	})

	voucherService := vouchers.NewService(vouchers.NewRepository(dbpool), accountService, periodService, auditLogger)
	voucherService.WithAttachments(attachmentStore)
	voucherService.WithReportInvalidator(reportService)
	voucherService.WithEvents(metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accounts.NewHandler(logger, accountService),
		PeriodsHandler:     periods.NewHandler(logger, periodService),
		VouchersHandler:    vouchers.NewHandler(logger, voucherService, attachmentStore),
		AttachmentsHandler: attachments.NewHandler(logger, attachmentStore),
		ReportsHandler:     reports.NewHandler(logger, reportService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	go sweepCompositions(ctx, logger, attachmentStore, cfg.AttachmentSweepInterval)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

// sweepCompositions abandons composition sessions idle past their TTL so
// their blobs do not outlive the request that created them.
func sweepCompositions(ctx context.Context, logger *slog.Logger, store *attachments.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept, err := store.Sweep(ctx, now)
			if err != nil {
				logger.Warn("sweep compositions", slog.Any("error", err))
				continue
			}
			if swept > 0 {
				logger.Info("swept compositions", slog.Int("count", swept), slog.Int("live", store.Live()))
			}
		}
	}
}
