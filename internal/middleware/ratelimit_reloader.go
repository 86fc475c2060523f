package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
)

// DefaultRatelimitRate applies when no rate is stored.
const DefaultRatelimitRate = "5-S"

// RatelimitConfigStore loads and seeds the stored rate.
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader limits requests per client IP at the rate stored in
// ratelimit_config. Counters live in Redis so replicas share them.
type RateLimitReloader struct {
	store    limiter.Store
	repo     RatelimitConfigStore
	fallback limiter.Rate
	log      *zap.Logger
	swap     hotSwap
}

// NewRateLimitReloader builds a Redis-backed limiter. defaultRate uses the
// limiter's "<limit>-<period>" format and is seeded when nothing is stored.
func NewRateLimitReloader(redisClient *redis.Client, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "cinematch_limiter"})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return newRateLimitReloader(store, repo, defaultRate, log, reloadInterval)
}

func newRateLimitReloader(store limiter.Store, repo RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	fallback, err := limiter.NewRateFromFormatted(defaultRate)
	if err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	r := &RateLimitReloader{store: store, repo: repo, fallback: fallback, log: log}
	r.swap = hotSwap{interval: reloadInterval, build: r.build}
	r.swap.refresh(context.Background())
	return r, nil
}

func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler { return r.swap.wrap }

// Start reloads the rate until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) { r.swap.run(ctx) }

func (r *RateLimitReloader) build(ctx context.Context) func(http.Handler) http.Handler {
	mw := stdlibmw.NewMiddleware(
		limiter.New(r.store, r.rate(ctx)),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(limitReached),
	)
	return mw.Handler
}

// rate resolves the stored rate, seeding the default on first run.
func (r *RateLimitReloader) rate(ctx context.Context) limiter.Rate {
	cfg, err := r.repo.Get(ctx)
	if err != nil {
		r.log.Warn("ratelimit_config_unavailable_using_default", zap.Error(err), zap.String("rate", r.fallback.Formatted))
		return r.fallback
	}
	if cfg == nil || cfg.Rate == "" {
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.fallback.Formatted}); err != nil {
			r.log.Error("failed_to_seed_ratelimit_config", zap.Error(err))
		}
		return r.fallback
	}
	parsed, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		r.log.Error("stored_ratelimit_invalid_using_default", zap.Error(err), zap.String("stored", cfg.Rate))
		return r.fallback
	}
	return parsed
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimited.Inc()
	writeError(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry later")
}
