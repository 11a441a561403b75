// Memora backend server — provides the HTTP API, manages queue workers,
// and runs the session processing pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/memora-app/memora/pkg/ai"
	"github.com/memora-app/memora/pkg/api"
	"github.com/memora-app/memora/pkg/auth"
	"github.com/memora-app/memora/pkg/cleanup"
	"github.com/memora-app/memora/pkg/config"
	"github.com/memora-app/memora/pkg/database"
	"github.com/memora-app/memora/pkg/embedding"
	"github.com/memora-app/memora/pkg/notify"
	"github.com/memora-app/memora/pkg/payments"
	"github.com/memora-app/memora/pkg/pipeline"
	"github.com/memora-app/memora/pkg/queue"
	"github.com/memora-app/memora/pkg/services"
	"github.com/memora-app/memora/pkg/storage"
	"github.com/memora-app/memora/pkg/version"
)

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"error", err)
	}

	podID := resolvePodID()
	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Memora",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"pod_id", podID,
		"environment", cfg.Environment)

	// 2. Database (runs migrations)
	dbClient, err := database.NewClient(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	// 3. One-time startup orphan cleanup: jobs this pod abandoned on a
	// previous run go back to pending.
	if err := queue.CleanupStartupOrphans(ctx, dbClient.Pool(), &cfg.Queue, podID); err != nil {
		slog.Error("Failed to clean up startup orphans", "error", err)
		// Non-fatal — the periodic orphan scanner will catch them
	}

	// 4. Object storage (optional: uploads are rejected when absent)
	var store *storage.Gateway
	if cfg.Storage.Configured() {
		store, err = storage.NewGateway(ctx, cfg.Storage)
		if err != nil {
			slog.Error("Failed to initialize object storage", "error", err)
			os.Exit(1)
		}
		slog.Info("Object storage initialized", "bucket", cfg.Storage.Bucket)
	} else {
		slog.Warn("Object storage not configured — media uploads disabled")
	}

	// 5. Domain services
	userService := services.NewUserService(dbClient.Pool())
	creditService := services.NewCreditService(dbClient.Pool())
	sessionService := services.NewSessionService(dbClient.Pool(), creditService, store)
	uploadService := services.NewUploadService(dbClient.Pool(), sessionService, store)
	embeddingRepo := embedding.NewRepository(dbClient.Pool())
	slog.Info("Services initialized")

	// 6. AI providers
	aiRouter, err := ai.NewRouter(cfg.AI)
	if err != nil {
		slog.Error("Failed to initialize AI providers", "error", err)
		os.Exit(1)
	}
	searchService := services.NewSearchService(aiRouter, embeddingRepo, sessionService)

	// 7. Firebase: token verification and push notifications
	var verifier auth.Verifier
	var notifier *notify.Notifier
	if cfg.Firebase.ProjectID != "" {
		app, err := auth.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			slog.Error("Failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
		verifier, err = auth.NewFirebaseVerifier(ctx, app)
		if err != nil {
			slog.Error("Failed to initialize Firebase auth", "error", err)
			os.Exit(1)
		}
		notifier, err = notify.NewNotifier(ctx, app)
		if err != nil {
			slog.Error("Failed to initialize Firebase messaging", "error", err)
			os.Exit(1)
		}
		slog.Info("Firebase initialized", "project_id", cfg.Firebase.ProjectID)
	} else {
		// Config validation rejects this in production.
		verifier = auth.DevVerifier{}
		slog.Warn("Firebase not configured — using dev token verifier")
	}

	// 8. Payments (optional)
	var paymentService *payments.Service
	if cfg.Stripe.Configured() {
		paymentService, err = payments.NewService(cfg.Stripe, dbClient.Pool(), userService, creditService)
		if err != nil {
			slog.Error("Failed to initialize payments", "error", err)
			os.Exit(1)
		}
		slog.Info("Stripe payments initialized")
	} else {
		slog.Warn("Stripe not configured — payment endpoints disabled")
	}

	// 9. Worker pool with the processing pipeline executor.
	// A typed nil gateway must not reach the interface field: the pipeline
	// skips media stages on a nil ObjectStore.
	var objectStore pipeline.ObjectStore
	if store != nil {
		objectStore = store
	}
	executor := pipeline.NewExecutor(sessionService, uploadService, embeddingRepo,
		objectStore, aiRouter, userService, notifier, &cfg.Queue)

	workerPool := queue.NewWorkerPool(podID, dbClient.Pool(), &cfg.Queue, executor)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 10. Retention sweeper
	cleanupService := cleanup.NewService(&cfg.Retention, dbClient.Pool(), store)
	cleanupService.Start(ctx)

	// 11. HTTP server
	httpServer := api.NewServer(cfg, dbClient, verifier, userService, creditService,
		sessionService, uploadService, searchService, paymentService, notifier, workerPool)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Memora started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 12. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 13. Graceful shutdown: drain workers first so in-flight jobs finish.
	cleanupService.Stop()

	workerShutdownCtx, workerCancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded — incomplete jobs will be orphan-recovered")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
