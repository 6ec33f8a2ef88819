package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uninote/uninote-backend/internal/cron"
	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/instance"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/metrics"
	"github.com/uninote/uninote-backend/pkg/migrate"
	"github.com/uninote/uninote-backend/pkg/redis"
	pkgstripe "github.com/uninote/uninote-backend/pkg/stripe"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	gateway, err := pkgstripe.NewCheckoutGateway(stripeClient, cfg.Stripe, cfg.App.PublicBaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout gateway", err)
		os.Exit(1)
	}

	purchaseMetrics := metrics.NewPurchaseMetrics(prometheus.DefaultRegisterer)
	purchaseRepo := purchases.NewRepository(dbClient.DB())
	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:      purchaseRepo,
		SheetRepo: sheets.NewRepository(dbClient.DB()),
		Gateway:   gateway,
		TxRunner:  dbClient,
		Metrics:   purchaseMetrics,
		Logger:    logg,

		GatewayTimeout: cfg.Stripe.RequestTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewPurchaseReconcileJob(cron.PurchaseReconcileJobParams{
		Logger:    logg,
		Purchases: purchaseRepo,
		Sessions:  gateway,
		Callbacks: purchaseService,
		MinAge:    cfg.Cron.ReconcileMinAge,
		BatchSize: cfg.Cron.ReconcileBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(reconcileJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), instance.GetID(serviceKind), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(serviceKind),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// lockName is namespaced by the redis client's LockKey prefix.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return serviceKind + ":" + env
}
