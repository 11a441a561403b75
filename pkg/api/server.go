// Package api provides the HTTP surface: session and media endpoints,
// account endpoints, payments, semantic search, webhooks, health, and
// metrics.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memora-app/memora/pkg/auth"
	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/database"
	"github.com/memora-app/memora/pkg/notify"
	"github.com/memora-app/memora/pkg/payments"
	"github.com/memora-app/memora/pkg/queue"
	"github.com/memora-app/memora/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	db       *database.Client
	verifier auth.Verifier

	users    *services.UserService
	credits  *services.CreditService
	sessions *services.SessionService
	uploads  *services.UploadService
	search   *services.SearchService
	payments *payments.Service // nil when Stripe is not configured
	notifier *notify.Notifier  // nil when Firebase is not configured
	pool     *queue.WorkerPool // nil in API-only deployments

	echo *echo.Echo
	http *http.Server
}

// NewServer assembles the server and registers all routes.
func NewServer(cfg *config.Config, db *database.Client, verifier auth.Verifier,
	users *services.UserService, credits *services.CreditService,
	sessions *services.SessionService, uploads *services.UploadService,
	search *services.SearchService, paymentSvc *payments.Service,
	notifier *notify.Notifier, pool *queue.WorkerPool) *Server {

	s := &Server{
		cfg:      cfg,
		db:       db,
		verifier: verifier,
		users:    users,
		credits:  credits,
		sessions: sessions,
		uploads:  uploads,
		search:   search,
		payments: paymentSvc,
		notifier: notifier,
		pool:     pool,
	}

	e := echo.New()
	e.Use(securityHeaders())
	e.Use(requestMetrics())

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/webhooks/stripe", s.stripeWebhookHandler)

	// Catalog is public: clients show packages before sign-in.
	e.GET("/api/v1/payments/packages", s.listPackagesHandler)

	v1 := e.Group("/api/v1", s.requireAuth())

	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.DELETE("/sessions/:id", s.deleteSessionHandler)
	v1.POST("/sessions/:id/blocks", s.appendBlockHandler)
	v1.GET("/sessions/:id/blocks", s.listBlocksHandler)
	v1.POST("/sessions/:id/finalize", s.finalizeSessionHandler)
	v1.POST("/sessions/:id/reprocess", s.reprocessSessionHandler)
	v1.DELETE("/sessions/:id/media/:mediaId", s.deleteMediaHandler)

	v1.POST("/uploads/presign", s.presignUploadHandler)
	v1.POST("/uploads/commit", s.commitUploadHandler)

	v1.GET("/me", s.getMeHandler)
	v1.GET("/me/credits", s.getCreditsHandler)
	v1.POST("/me/preferred-language", s.setPreferredLanguageHandler)
	v1.POST("/me/fcm-token", s.setFCMTokenHandler)

	v1.POST("/payments/checkout", s.createCheckoutHandler)
	v1.POST("/payments/payment-intent", s.createPaymentIntentHandler)
	v1.GET("/payments/history", s.paymentHistoryHandler)

	v1.POST("/search/semantic", s.searchHandler)

	s.echo = e
	return s
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
