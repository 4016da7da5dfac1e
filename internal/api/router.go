/**
 * @description
 * This file sets up the HTTP router for the transaction-service. It mounts the open
 * ledger CRUD routes, the JWT-protected blockchain transaction routes, the health
 * checks and the metrics endpoint.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: Cross-origin handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig collects the handlers and settings the router needs.
type RouterConfig struct {
	Ledger         *LedgerHandlers
	Chain          *ChainHandlers
	Health         *HealthHandlers
	Metrics        *Metrics
	JWT            JWTConfig
	AllowedOrigins []string
}

// TransactionRoutes creates and returns a new router for the transaction service.
func TransactionRoutes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(CorrelationIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CorrelationIDHeader},
		ExposedHeaders:   []string{"Location", CorrelationIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.LivenessHandler)
		r.Get("/health/live", cfg.Health.LivenessHandler)
		r.Get("/health/ready", cfg.Health.ReadinessHandler)
	}
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	if cfg.Ledger != nil {
		r.Route("/api/transactions", func(r chi.Router) {
			r.Get("/", cfg.Ledger.ListTransactionsHandler)
			r.Post("/", cfg.Ledger.CreateTransactionHandler)
			r.Get("/status/{status}", cfg.Ledger.ListTransactionsByStatusHandler)
			r.Get("/{id}", cfg.Ledger.GetTransactionHandler)
			r.Put("/{id}", cfg.Ledger.UpdateTransactionHandler)
			r.Patch("/{id}/status", cfg.Ledger.UpdateTransactionStatusHandler)
			r.Delete("/{id}", cfg.Ledger.DeleteTransactionHandler)
		})
	}

	if cfg.Chain != nil {
		// Group routes that require authentication.
		r.Route("/api/transaction", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(cfg.JWT))

			r.Get("/history", cfg.Chain.HistoryHandler)
			r.Get("/balance/{address}", cfg.Chain.BalanceHandler)
			r.Get("/{id}/status", cfg.Chain.GetTransactionStatusHandler)
			r.Put("/{id}/status", cfg.Chain.UpdateTransactionStatusHandler)
			r.Post("/{id}/receipt", cfg.Chain.ApplyReceiptHandler)
			r.Post("/{id}/fail", cfg.Chain.MarkFailedHandler)
		})
	}

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
