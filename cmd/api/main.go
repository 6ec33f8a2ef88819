package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/uninote/uninote-backend/api/routes"
	"github.com/uninote/uninote-backend/internal/auth"
	"github.com/uninote/uninote-backend/internal/entitlements"
	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/internal/ratings"
	"github.com/uninote/uninote-backend/internal/sellers"
	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/internal/users"
	stripewebhook "github.com/uninote/uninote-backend/internal/webhooks/stripe"
	"github.com/uninote/uninote-backend/pkg/auth/session"
	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/instance"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/metrics"
	"github.com/uninote/uninote-backend/pkg/migrate"
	"github.com/uninote/uninote-backend/pkg/redis"
	"github.com/uninote/uninote-backend/pkg/security"
	"github.com/uninote/uninote-backend/pkg/storage/s3"
	pkgstripe "github.com/uninote/uninote-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	storage, err := s3.New(bootCtx, cfg.Storage, logg)
	if err != nil {
		return err
	}

	stripeClient, err := pkgstripe.NewClient(bootCtx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := pkgstripe.NewCheckoutGateway(stripeClient, cfg.Stripe, cfg.App.PublicBaseURL)
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	purchaseMetrics := metrics.NewPurchaseMetrics(registry)

	userRepo := users.NewRepository(dbClient.DB())
	sheetRepo := sheets.NewRepository(dbClient.DB())
	purchaseRepo := purchases.NewRepository(dbClient.DB())
	ratingRepo := ratings.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	sellerService, err := sellers.NewService(userRepo, logg)
	if err != nil {
		return err
	}

	sheetService, err := sheets.NewService(sheets.ServiceParams{
		Repo:            sheetRepo,
		Users:           userRepo,
		Storage:         storage,
		DefaultCurrency: cfg.Stripe.Currency,
		MaxUploadBytes:  cfg.Storage.MaxUploadBytes(),
		Logger:          logg,
	})
	if err != nil {
		return err
	}

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:      purchaseRepo,
		SheetRepo: sheetRepo,
		Gateway:   gateway,
		TxRunner:  dbClient,
		Metrics:   purchaseMetrics,
		Logger:    logg,

		GatewayTimeout: cfg.Stripe.RequestTimeout,
	})
	if err != nil {
		return err
	}

	gate, err := entitlements.NewGate(purchaseRepo, sheetRepo)
	if err != nil {
		return err
	}

	ratingService, err := ratings.NewService(ratingRepo, sheetRepo, gate, dbClient, logg)
	if err != nil {
		return err
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookEventTTL, cfg.Webhook.IdempotencyScope)
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(purchaseService, purchaseMetrics, logg)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(cfg, logg, routes.Deps{
		DB:             dbClient,
		Redis:          redisClient,
		Storage:        storage,
		Sessions:       sessionManager,
		Auth:           authService,
		Sellers:        sellerService,
		Sheets:         sheetService,
		Purchases:      purchaseService,
		Entitlements:   gate,
		Ratings:        ratingService,
		StripeClient:   stripeClient,
		StripeWebhooks: webhookService,
		WebhookGuard:   webhookGuard,
		Gatherer:       registry,
		HTTPMetrics:    httpMetrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("api"),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}
