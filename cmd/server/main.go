package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/cache"
	"github.com/benvon/cinematch/internal/chat"
	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/handlers"
	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/middleware"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/ai"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/services/reconcile"
	"github.com/benvon/cinematch/internal/services/storeauth"
	"github.com/benvon/cinematch/internal/services/tmdb"
	"github.com/benvon/cinematch/internal/tasks"
	"github.com/benvon/cinematch/internal/telemetry"
)

const serviceName = "cinematch-api"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including LLM request logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.Bool("dev_mode", cfg.DevMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if !cfg.FirebaseEnabled() {
		zapLogger.Fatal("firebase_project_not_configured")
	}

	ctx := context.Background()

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(ctx, telemetry.Config{
				ServiceName:    serviceName,
				ServiceVersion: version,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.DevMode,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
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

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue := connectQueue(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	// Repositories
	userRepo := database.NewUserRepository(db)
	profileRepo := database.NewProfileRepository(db)
	movieRepo := database.NewMovieRepository(db)
	listRepo := database.NewMovieListRepository(db)
	forumRepo := database.NewForumRepository(db)
	chatRepo := database.NewChatRepository(db)
	reviewRepo := database.NewReviewRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Identity
	firebaseClient, err := identity.NewFirebaseClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_firebase", zap.Error(err))
	}
	verifier := identity.NewVerifier(identity.NewJWKSManager(&http.Client{Timeout: 10 * time.Second}, time.Hour), "", cfg.FirebaseProjectID)

	var authAdmin reconcile.AuthAdmin
	if cfg.SupabaseEnabled() {
		storeAuth, err := storeauth.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_initialize_store_auth_client", zap.Error(err))
		}
		authAdmin = storeAuth
	} else {
		zapLogger.Warn("store_auth_not_configured_correlation_disabled")
	}

	reconciler := reconcile.New(userRepo, firebaseClient, authAdmin, zapLogger)
	runner := tasks.NewRunner(zapLogger, cfg.BackgroundTaskTimeout)

	var sessions *identity.SessionManager
	if cfg.SessionSecret != "" {
		sessions, err = identity.NewSessionManager(cfg.SessionSecret, cfg.SessionTokenTTL, cfg.RefreshTokenTTL)
		if err != nil {
			zapLogger.Fatal("failed_to_initialize_session_manager", zap.Error(err))
		}
	} else {
		zapLogger.Warn("session_secret_not_configured_legacy_login_disabled")
	}

	// Movie metadata and LLM
	var movieSource handlers.MovieSource
	var tmdbClient *tmdb.Client
	if cfg.TMDBBearerToken != "" {
		tmdbClient, err = tmdb.NewClient(tmdb.Config{
			BaseURL:     cfg.TMDBURL,
			BearerToken: cfg.TMDBBearerToken,
			RateLimit:   cfg.TMDBRateLimit,
			CacheTTL:    cfg.TMDBCacheTTL,
		}, cache.NewRedis(redisClient, "cinematch:tmdb:"), zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_initialize_tmdb_client", zap.Error(err))
		}
		movieSource = tmdbClient
	} else {
		zapLogger.Warn("tmdb_not_configured_movie_lookup_disabled")
	}

	var aiProvider ai.Provider
	if cfg.AIAPIKey != "" {
		aiProvider = ai.NewOpenAIProvider(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	} else {
		zapLogger.Warn("ai_api_key_not_configured_ai_features_disabled")
	}

	// Router
	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, so the first Use is outermost.
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, time.Minute)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitReloader, err := middleware.NewRateLimitReloader(redisClient, ratelimitConfigRepo, middleware.DefaultRatelimitRate, zapLogger, time.Minute)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}
	rateLimitMW := rateLimitReloader.Middleware()

	var sessionVerifier middleware.SessionVerifier
	var sessionIssuer handlers.SessionIssuer
	if sessions != nil {
		sessionVerifier = sessions
		sessionIssuer = sessions
	}
	authMW := middleware.NewAuthenticator(middleware.AuthConfig{
		Tokens:     verifier,
		Sessions:   sessionVerifier,
		Reconciler: reconciler,
		Users:      userRepo,
		DevMode:    cfg.DevMode,
		Logger:     zapLogger,
	}).Middleware

	hub := chat.NewHub(chatRepo, zapLogger, corsReloader.CheckOrigin)

	healthOpts := []handlers.HealthOption{handlers.WithRedis(redisClient), handlers.WithQueue(jobQueue)}
	if tmdbClient != nil {
		healthOpts = append(healthOpts, handlers.WithCheck("tmdb", tmdbClient.Ping))
	}
	healthChecker := handlers.NewHealthChecker(db, healthOpts...)

	authHandler := handlers.NewAuthHandler(firebaseClient, reconciler, userRepo, profileRepo, sessionIssuer, zapLogger)
	usersHandler := handlers.NewUsersHandler(firebaseClient, reconciler, runner, jobQueue, zapLogger)
	moviesHandler := handlers.NewMoviesHandler(movieRepo, movieSource, zapLogger)
	movieListHandler := handlers.NewMovieListHandler(listRepo, profileRepo, zapLogger)
	forumHandler := handlers.NewForumHandler(forumRepo, profileRepo, zapLogger)
	chatHandler := handlers.NewChatHandler(chatRepo, hub, zapLogger)
	aiHandler := handlers.NewAIHandler(aiProvider, movieRepo, reviewRepo, zapLogger)

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	openAPIHandler, err := handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"))
	if err != nil {
		zapLogger.Warn("openapi_document_unavailable", zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// protected mounts a rate-limited, authenticated subrouter at prefix.
	protected := func(prefix string) *mux.Router {
		sub := apiRouter.PathPrefix(prefix).Subrouter()
		sub.Use(rateLimitMW)
		sub.Use(authMW)
		return sub
	}
	public := func(prefix string) *mux.Router {
		sub := apiRouter.PathPrefix(prefix).Subrouter()
		sub.Use(rateLimitMW)
		return sub
	}

	authHandler.RegisterPublicRoutes(public("/auth"))
	authHandler.RegisterRoutes(protected("/auth"))
	usersHandler.RegisterRoutes(protected("/users"))
	moviesHandler.RegisterPublicRoutes(public("/movies"))
	moviesHandler.RegisterRoutes(protected("/movies"))
	movieListHandler.RegisterRoutes(protected("/movielist"))
	forumHandler.RegisterPublicRoutes(public("/forum"))
	forumHandler.RegisterRoutes(protected("/forum"))
	chatHandler.RegisterRoutes(protected("/chat"))
	aiHandler.RegisterRoutes(protected("/ai"))

	// Preflights that reach the router have already been answered by CORS.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go corsReloader.Start(bgCtx)
	go rateLimitReloader.Start(bgCtx)
	go func() {
		if err := hub.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("chat_hub_stopped_with_error", zap.Error(err))
		}
	}()

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	bgCancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("background_tasks_abandoned", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff, since the broker is
// often still starting when the API container comes up.
func connectQueue(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
