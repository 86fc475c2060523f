package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
)

const (
	fallbackCORSMaxAge = 86400
	devFrontendOrigin  = "http://localhost:3000"
)

// CorsConfigSource loads the stored CORS policy.
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader serves the CORS policy stored in cors_config and picks up
// edits made with cinematch-configure without a restart.
type CORSReloader struct {
	source   CorsConfigSource
	fallback string
	log      *zap.Logger
	policy   atomic.Pointer[cors.Cors]
	swap     hotSwap
}

// NewCORSReloader loads the policy once. frontendURL is used when nothing is
// stored or the database is unreachable.
func NewCORSReloader(source CorsConfigSource, frontendURL string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		source:   source,
		fallback: strings.TrimSpace(frontendURL),
		log:      log,
	}
	r.swap = hotSwap{interval: reloadInterval, build: r.build}
	r.swap.refresh(context.Background())
	return r
}

func (r *CORSReloader) Middleware() func(http.Handler) http.Handler { return r.swap.wrap }

// Start reloads the policy until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context) { r.swap.run(ctx) }

// CheckOrigin is the websocket upgrader's origin check. Requests without an
// Origin header come from non-browser clients and pass.
func (r *CORSReloader) CheckOrigin(req *http.Request) bool {
	if req.Header.Get("Origin") == "" {
		return true
	}
	return r.policy.Load().OriginAllowed(req)
}

func (r *CORSReloader) build(ctx context.Context) func(http.Handler) http.Handler {
	cfg, err := r.source.Get(ctx)
	if err != nil {
		r.log.Debug("cors_config_unavailable_using_fallback", zap.Error(err))
		cfg = nil
	}
	c := cors.New(corsOptions(cfg, r.fallback))
	r.policy.Store(c)
	return c.Handler
}

func corsOptions(cfg *models.CorsConfig, fallback string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   database.AllowedOriginsSlice(fallback),
		AllowCredentials: true,
		MaxAge:           fallbackCORSMaxAge,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", request.RequestIDHeader, DevEmailHeader},
		ExposedHeaders: []string{request.RequestIDHeader},
	}
	if cfg != nil {
		opts.AllowedOrigins = database.AllowedOriginsSlice(cfg.AllowedOrigins)
		opts.AllowCredentials = cfg.AllowCredentials
		opts.MaxAge = cfg.MaxAge
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{devFrontendOrigin}
	}
	return opts
}
