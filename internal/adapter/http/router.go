package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/gofactor/internal/adapter/http/handler"
	"github.com/iho/gofactor/internal/adapter/http/middleware"
	"github.com/iho/gofactor/internal/infrastructure/auth"
	"github.com/iho/gofactor/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	InvoiceHandler    *handler.InvoiceHandler
	ListingHandler    *handler.ListingHandler
	TradeHandler      *handler.TradeHandler
	ComplianceHandler *handler.ComplianceHandler
	AccountHandler    *handler.AccountHandler
	LedgerHandler     *handler.LedgerHandler
	HealthHandler     *handler.HealthHandler

	Logger zerolog.Logger

	// Optional
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	HTTPMetrics      *middleware.HTTPMetrics
	Gatherer         prometheus.Gatherer
	// JWTManager enables bearer authentication. Without it the caller is read from
	// the X-Caller-Address header.
	JWTManager *auth.JWTManager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		} else {
			cfg.Logger.Warn().
				Str("header", middleware.CallerAddressHeader).
				Msg("AUTHENTICATION DISABLED: any client can act as any address, including the authority")
			r.Use(middleware.HeaderCaller)
		}

		// Idempotency keys are scoped by caller, so this runs after authentication
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		// Invoices
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", cfg.InvoiceHandler.Mint)
			r.Get("/", cfg.InvoiceHandler.List)
			r.Get("/supply", cfg.InvoiceHandler.Supply)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.InvoiceHandler.Get)
				r.Get("/events", cfg.InvoiceHandler.Events)

				r.Get("/listing", cfg.ListingHandler.Get)
				r.Put("/listing", cfg.ListingHandler.Create)
				r.Patch("/listing", cfg.ListingHandler.Reprice)
				r.Delete("/listing", cfg.ListingHandler.Cancel)

				r.Post("/buy", cfg.TradeHandler.Buy)
				r.Post("/settle", cfg.TradeHandler.Settle)
				r.Post("/default", cfg.TradeHandler.Default)
			})
		})

		r.Get("/listings", cfg.ListingHandler.ListActive)

		// Compliance
		r.Route("/compliance/{address}", func(r chi.Router) {
			r.Get("/", cfg.ComplianceHandler.Get)
			r.Put("/", cfg.ComplianceHandler.Register)
			r.Delete("/", cfg.ComplianceHandler.Revoke)
		})

		// Settlement currency
		r.Route("/accounts/{address}", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.Get)
			r.Post("/deposit", cfg.AccountHandler.Deposit)
			r.Get("/transfers", cfg.AccountHandler.Transfers)
		})
		r.Put("/allowances/{spender}", cfg.AccountHandler.Approve)
		r.Get("/allowances/{owner}/{spender}", cfg.AccountHandler.GetAllowance)

		// Ledger
		r.Route("/ledger", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleOperator))
			r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Get("/reconciliation", cfg.LedgerHandler.Reconcile)
		})
	})

	return r
}
