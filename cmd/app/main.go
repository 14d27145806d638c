package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"opticalfiber-backend/internal/config"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/adapter"
	payAdapters "opticalfiber-backend/internal/infra/adapters/payment"
	"opticalfiber-backend/internal/infra/api"
	pg "opticalfiber-backend/internal/infra/db/postgres"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
	red "opticalfiber-backend/internal/infra/redis"
	"opticalfiber-backend/internal/infra/sched"
	"opticalfiber-backend/internal/infra/worker"
	"opticalfiber-backend/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("exited with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	routeCache := red.NewRouteCache(redisClient, cfg.Redis.TTL, logger)
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	officeRepo := pg.NewOfficeRepo(pool)
	routeRepo := pg.NewRouteRepoCacheDecorator(pg.NewRouteRepo(pool), routeCache)
	txm := pg.NewTxManager(pool)

	// ---- Quota ----
	free, chunk, err := cfg.Quota.Parse()
	if err != nil {
		return err
	}
	policy, err := model.NewQuotaPolicy(free, chunk)
	if err != nil {
		return fmt.Errorf("quota policy: %w", err)
	}
	quota := usecase.NewQuotaEngine(routeRepo, payRepo, policy, logger)

	// ---- Payments ----
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("payment gateway: %w", err)
	}
	ledger := usecase.NewPaymentLedger(payRepo, cfg.Payment.Currency, cfg.Payment.DefaultDurationDays, logger)

	payOpts := usecase.PaymentOptions{
		ReturnURL: strings.TrimRight(cfg.HTTP.PublicBaseURL, "/") + cfg.Payment.CallbackPath,
		Dev:       cfg.Runtime.Dev,
	}
	if cfg.Payment.ChunkPrice != "" {
		// validated at config load
		payOpts.ChunkPrice = decimal.RequireFromString(cfg.Payment.ChunkPrice)
	}
	paymentUC := usecase.NewPaymentUseCase(payRepo, ledger, gateway, payOpts, logger)
	webhookUC := usecase.NewWebhookReconciler(payRepo, ledger, gateway, logger)

	// ---- Deferred route writes ----
	jobs := worker.NewPool(cfg.Jobs.RouteWorkers, cfg.Jobs.RouteQueueSize, cfg.Jobs.RouteMaxAttempts, cfg.Jobs.RouteBackoff, logger)
	routeUC := usecase.NewRouteUseCase(routeRepo, officeRepo, routeCache, quota, txm, jobs, logger)

	reconciler := sched.NewPaymentReconciler(paymentUC, locker, cfg.Scheduler, logger)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Routes:   routeUC,
		Quota:    quota,
		Payments: paymentUC,
		Webhooks: webhookUC,
		Auth:     api.NewAuthManager(cfg.Auth.JWTSecret, logger),
		Limiter:  rateLimiter,
	}, api.Options{
		RequestTimeout:              cfg.HTTP.RequestTimeout,
		PaymentInitiationsPerMinute: cfg.RateLimit.PaymentInitiationsPerMinute,
	}, logger)

	logger.Info().
		Str("version", version).
		Str("gateway", gateway.Name()).
		Int("port", cfg.HTTP.Port).
		Msg("opticalfiber-backend starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return jobs.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})
	g.Go(func() error { return api.Serve(gctx, cfg.HTTP.Port, srv.Router(), logger) })
	return g.Wait()
}

// newGateway picks Cashfree when credentials are configured and falls back to
// the in-process gateway in developer mode.
func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	cf := cfg.Payment.Cashfree
	if cf.AppID == "" || cf.SecretKey == "" {
		if !cfg.Runtime.Dev {
			return nil, errors.New("payment.cashfree.app_id and secret_key are required outside dev mode")
		}
		logger.Warn().Msg("cashfree credentials missing; using noop payment gateway")
		return payAdapters.NewNoopPaymentGateway(cf.WebhookSecret), nil
	}
	return payAdapters.NewCashfreeGateway(cf, logger)
}
