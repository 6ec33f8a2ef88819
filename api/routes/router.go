package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uninote/uninote-backend/api/controllers"
	webhookcontrollers "github.com/uninote/uninote-backend/api/controllers/webhooks"
	"github.com/uninote/uninote-backend/api/middleware"
	"github.com/uninote/uninote-backend/internal/auth"
	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/internal/sellers"
	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/auth/session"
	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/enums"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/metrics"
)

type redisStore interface {
	controllers.Pinger
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type webhookClient interface {
	SigningSecret() string
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Deps carries everything the HTTP surface is built from.
type Deps struct {
	DB      controllers.Pinger
	Redis   redisStore
	Storage interface {
		controllers.Pinger
		controllers.Presigner
	}
	Sessions session.AccessSessionChecker

	Auth         auth.Service
	Sellers      sellers.Service
	Sheets       sheets.Service
	Purchases    purchases.Service
	Entitlements controllers.EntitlementGate
	Ratings      controllers.RatingService

	StripeClient   webhookClient
	StripeWebhooks webhookcontrollers.StripeWebhookService
	WebhookGuard   webhookGuard

	// Gatherer backs /metrics; HTTPMetrics must be registered on the same registry.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg)
	idempotent := middleware.Idempotency(deps.Redis, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":      deps.DB,
			"redis":   deps.Redis,
			"storage": deps.Storage,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(requireAuth).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	// public catalog; a bearer token, when sent, lets sellers see their hidden sheets
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/api/v1/sheets", controllers.SheetList(deps.Sheets, logg))
		r.Get("/api/v1/sheets/{sheetId}", controllers.SheetGet(deps.Sheets, logg))
		r.Get("/api/v1/sheets/{sheetId}/preview", controllers.SheetPreview(deps.Entitlements, deps.Storage, logg))
		r.Get("/api/v1/sheets/{sheetId}/ratings", controllers.SheetRatings(deps.Ratings, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/v1/me", controllers.Me(deps.Auth, logg))
		r.With(idempotent).Post("/api/v1/sellers/apply", controllers.SellerApply(deps.Sellers, logg))

		r.With(idempotent).Post("/api/v1/sheets", controllers.SheetCreate(deps.Sheets, logg))
		r.Patch("/api/v1/sheets/{sheetId}", controllers.SheetUpdate(deps.Sheets, logg))
		r.Put("/api/v1/sheets/{sheetId}/file", controllers.SheetUpload(deps.Sheets, sheets.UploadKindFile, cfg.Storage.MaxUploadBytes(), logg))
		r.Put("/api/v1/sheets/{sheetId}/preview", controllers.SheetUpload(deps.Sheets, sheets.UploadKindPreview, cfg.Storage.MaxUploadBytes(), logg))
		r.Get("/api/v1/seller/sheets", controllers.SellerSheets(deps.Sheets, logg))

		r.With(idempotent).Post("/api/v1/sheets/{sheetId}/purchase", controllers.PurchaseInitiate(deps.Purchases, logg))
		r.Get("/api/v1/sheets/{sheetId}/ownership", controllers.SheetOwnership(deps.Entitlements, logg))
		r.Get("/api/v1/sheets/{sheetId}/download", controllers.SheetDownload(deps.Entitlements, deps.Storage, logg))
		r.With(idempotent).Put("/api/v1/sheets/{sheetId}/rating", controllers.SheetRate(deps.Ratings, logg))

		r.Get("/api/v1/purchases", controllers.PurchaseList(deps.Purchases, logg))
		r.Get("/api/v1/purchases/{purchaseId}", controllers.PurchaseGet(deps.Purchases, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(requireAuth, middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Get("/sellers", controllers.AdminSellerList(deps.Sellers, logg))
		r.Post("/sellers/{userId}/approve", controllers.AdminSellerApprove(deps.Sellers, logg))
		r.Post("/sellers/{userId}/reject", controllers.AdminSellerReject(deps.Sellers, logg))
	})

	return r
}
