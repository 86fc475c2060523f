package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/services/reconcile"
	"github.com/benvon/cinematch/internal/services/storeauth"
	"github.com/benvon/cinematch/internal/telemetry"
	"github.com/benvon/cinematch/internal/workers"
)

const serviceName = "cinematch-worker"

const (
	dlqGCInterval  = time.Hour
	dlqGCRetention = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Duration("sweep_interval", cfg.SweepInterval),
	)

	if !cfg.FirebaseEnabled() {
		zapLogger.Fatal("firebase_project_not_configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName: serviceName,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    cfg.DevMode,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	firebaseClient, err := identity.NewFirebaseClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_firebase", zap.Error(err))
	}

	var authAdmin reconcile.AuthAdmin
	if cfg.SupabaseEnabled() {
		storeAuth, err := storeauth.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_initialize_store_auth_client", zap.Error(err))
		}
		authAdmin = storeAuth
	}

	reconciler := reconcile.New(database.NewUserRepository(db), firebaseClient, authAdmin, zapLogger)
	processor := workers.NewUserSyncProcessor(reconciler, firebaseClient, zapLogger)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLogger.Info("worker_metrics_listening", zap.String("port", cfg.WorkerMetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("worker_metrics_server_failed", zap.Error(err))
		}
	}()

	scheduler := workers.NewSweepScheduler(jobQueue, cfg.SweepInterval, zapLogger)
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("sweep_scheduler_stopped_with_error", zap.Error(err))
		}
	}()

	dlqGC := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqGCRetention, zapLogger)
	go func() {
		if err := dlqGC.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	// Jobs run on a context that survives the shutdown signal so an in-flight
	// reconcile finishes and is acked before the connection closes.
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				if err := processor.ProcessJob(jobCtx, msg); err != nil {
					zapLogger.Error("job_processing_failed",
						zap.String("job_id", msg.Job().ID.String()),
						zap.String("job_type", string(msg.Job().Type)),
						zap.Error(err),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	<-sigChan
	zapLogger.Info("worker_shutting_down")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("worker_metrics_shutdown_failed", zap.Error(err))
	}

	zapLogger.Info("worker_stopped")
}
