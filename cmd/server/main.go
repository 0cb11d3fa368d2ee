package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/shareflow/internal/api"
	"github.com/rpattn/shareflow/internal/config"
	"github.com/rpattn/shareflow/internal/db"
	"github.com/rpattn/shareflow/internal/provisioner"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/reconcile"
	"github.com/rpattn/shareflow/internal/remote"
	"github.com/rpattn/shareflow/internal/repository"
	"github.com/rpattn/shareflow/internal/service"
	"github.com/rpattn/shareflow/internal/worker"
	"github.com/rpattn/shareflow/migrations"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database.URL(), migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	store := repository.NewVersionedRepository(conn.Pool)
	workOrders := repository.NewWorkOrderStore(store)
	audit := repository.NewAuditRepository(conn.Pool)
	notifications := repository.NewNotificationRepository(conn.Pool)
	syncJobs := repository.NewSyncJobRepository(conn.Pool)

	// Message queue and remote provisioning client
	q := queue.NewPostgresQueue(conn.Pool, cfg.Queue.Visibility)
	client := remote.NewHTTPClient(cfg.RemoteBaseURL)

	// Execution engines
	orchestrator := provisioner.NewOrchestrator(store, workOrders, audit, client)
	reconciler := reconcile.NewEngine(store, workOrders, audit, client)

	consumer := worker.NewConsumer(q, workOrders, orchestrator, reconciler, cfg.Queue.PollInterval)
	scheduler := worker.NewScheduler(q, syncJobs, notifications, []worker.SyncHandler{
		worker.NewDirectorySyncHandler(store, audit, client),
		worker.NewCatalogSyncHandler(store, audit, client),
		worker.NewMetricsSyncHandler(store, notifications),
	}, worker.SchedulerConfig{
		Intervals:     cfg.SyncIntervals,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
		PollInterval:  cfg.Queue.PollInterval,
	})

	// Recover sync state from a previous process instance before consuming
	if err := scheduler.Startup(ctx); err != nil {
		log.Fatalf("Failed to recover sync state: %v", err)
	}

	go consumer.Run(ctx)
	go scheduler.Run(ctx)

	svc := service.NewService(workOrders, q)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsHandler.Handler(api.NewHandler(svc)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting sharing API server on %s", cfg.HTTPAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop the workers, then drain HTTP with a timeout
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
