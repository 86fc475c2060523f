// Package tmdb fetches movie metadata from The Movie Database.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tmdbapi "github.com/cyruzin/golang-tmdb"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/benvon/cinematch/internal/breaker"
	"github.com/benvon/cinematch/internal/cache"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
)

const (
	posterBaseURL  = "https://image.tmdb.org/t/p/w500"
	apiPathPrefix  = "/3"
	castLimit      = 3
	requestTimeout = 10 * time.Second
)

// ErrNotFound is returned when TMDB has no movie with the requested id.
var ErrNotFound = errors.New("tmdb movie not found")

// ErrUpstream wraps any other TMDB failure.
var ErrUpstream = errors.New("tmdb request failed")

// Genre is a TMDB genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Person is a cast or crew credit.
type Person struct {
	Name string `json:"name"`
	Job  string `json:"job,omitempty"`
}

// Credits holds the cast and crew appended to a movie response.
type Credits struct {
	Cast []Person `json:"cast"`
	Crew []Person `json:"crew"`
}

// MovieDetails is the subset of a movie and its credits the application uses.
type MovieDetails struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	PosterPath  string  `json:"poster_path"`
	Genres      []Genre `json:"genres"`
	Credits     Credits `json:"credits"`
}

// Director returns the first crew member credited as Director.
func (d *MovieDetails) Director() string {
	for _, p := range d.Credits.Crew {
		if p.Job == "Director" {
			return p.Name
		}
	}
	return ""
}

// ToMovie converts the details into a catalog row.
func (d *MovieDetails) ToMovie() *models.Movie {
	tmdbID := d.ID
	m := &models.Movie{
		TMDBID:        &tmdbID,
		Title:         d.Title,
		AverageRating: d.VoteAverage,
		Cast:          []string{},
		Genres:        []string{},
	}
	if d.Overview != "" {
		overview := d.Overview
		m.Synopsis = &overview
	}
	if director := d.Director(); director != "" {
		m.Director = &director
	}
	for i, p := range d.Credits.Cast {
		if i == castLimit {
			break
		}
		m.Cast = append(m.Cast, p.Name)
	}
	for _, g := range d.Genres {
		m.Genres = append(m.Genres, g.Name)
	}
	if t, err := time.Parse("2006-01-02", d.ReleaseDate); err == nil {
		m.ReleaseDate = &t
	}
	if d.PosterPath != "" {
		poster := posterBaseURL + d.PosterPath
		m.PosterURL = &poster
	}
	return m
}

// Client is a rate-limited, cached TMDB client.
type Client struct {
	baseURL   *url.URL
	token     string
	transport http.RoundTripper
	limiter   *rate.Limiter
	breaker   *breaker.Breaker[*MovieDetails]
	cache     cache.Cache
	cacheTTL  time.Duration
	language  string
	logger    *zap.Logger
}

// Config holds client settings.
type Config struct {
	BaseURL     string
	BearerToken string
	RateLimit   float64
	CacheTTL    time.Duration
	Language    string
	Transport   http.RoundTripper
}

// NewClient creates a TMDB client. c may be nil to disable caching.
func NewClient(cfg Config, c cache.Cache, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tmdb base url is required")
	}
	if cfg.BearerToken == "" {
		return nil, errors.New("tmdb bearer token is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid tmdb base url %q", cfg.BaseURL)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL: base,
		token:   cfg.BearerToken,
		transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"}),
			Base:   transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		breaker: breaker.New[*MovieDetails]("tmdb", breaker.Settings{
			IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, ErrNotFound) },
		}, logger),
		cache:    c,
		cacheTTL: cfg.CacheTTL,
		language: cfg.Language,
		logger:   logger,
	}, nil
}

// GetMovie returns the details of a TMDB movie including credits.
func (c *Client) GetMovie(ctx context.Context, id int64) (*MovieDetails, error) {
	key := "tmdb:movie:" + strconv.FormatInt(id, 10)
	if c.cache != nil {
		if d, ok := cache.GetJSON[*MovieDetails](ctx, c.cache, "tmdb", key); ok {
			return d, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	d, err := c.breaker.Execute(func() (*MovieDetails, error) {
		return c.fetchMovie(ctx, id)
	})
	metrics.ExternalRequestDuration.WithLabelValues("tmdb", "get_movie").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, d, c.cacheTTL); err != nil {
			c.logger.Warn("tmdb_cache_write_failed", zap.Int64("tmdb_id", id), zap.Error(err))
		}
	}
	return d, nil
}

// Ping checks that the API answers with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	api, rt, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.GetConfigurationAPI(); err != nil {
		if rt.status != 0 {
			return fmt.Errorf("tmdb returned status %d: %w", rt.status, err)
		}
		return fmt.Errorf("failed to reach tmdb: %w", err)
	}
	return nil
}

func (c *Client) fetchMovie(ctx context.Context, id int64) (*MovieDetails, error) {
	api, rt, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	opts := map[string]string{"language": c.language}

	details, err := api.GetMovieDetails(int(id), opts)
	if err != nil {
		return nil, rt.classify(err)
	}
	credits, err := api.GetMovieCredits(int(id), opts)
	if err != nil {
		return nil, rt.classify(err)
	}
	return fromAPI(details, credits), nil
}

// api returns a library client bound to ctx. The library has no context
// parameters, so each call gets its own transport.
func (c *Client) api(ctx context.Context) (*tmdbapi.Client, *callTransport, error) {
	api, err := tmdbapi.InitV4(c.token)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init tmdb client: %w", err)
	}
	rt := &callTransport{ctx: ctx, base: c.transport, target: c.baseURL}
	api.SetClientConfig(http.Client{Transport: rt, Timeout: requestTimeout})
	return api, rt, nil
}

func fromAPI(d *tmdbapi.MovieDetails, credits *tmdbapi.MovieCredits) *MovieDetails {
	out := &MovieDetails{
		ID:          int64(d.ID),
		Title:       d.Title,
		Overview:    d.Overview,
		ReleaseDate: d.ReleaseDate,
		VoteAverage: float64(d.VoteAverage),
		PosterPath:  d.PosterPath,
		Genres:      make([]Genre, 0, len(d.Genres)),
	}
	for _, g := range d.Genres {
		out.Genres = append(out.Genres, Genre{ID: int(g.ID), Name: g.Name})
	}
	if credits != nil {
		for _, p := range credits.Cast {
			out.Credits.Cast = append(out.Credits.Cast, Person{Name: p.Name})
		}
		for _, p := range credits.Crew {
			out.Credits.Crew = append(out.Credits.Crew, Person{Name: p.Name, Job: p.Job})
		}
	}
	return out
}

// callTransport binds requests to ctx, points them at the configured base
// URL and keeps the status code of the last response.
type callTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	target *url.URL
	status int
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	req.URL.Path = t.target.Path + strings.TrimPrefix(req.URL.Path, apiPathPrefix)
	req.URL.RawPath = ""
	req.Host = t.target.Host

	resp, err := t.base.RoundTrip(req)
	if err == nil {
		t.status = resp.StatusCode
	}
	return resp, err
}

func (t *callTransport) classify(err error) error {
	switch {
	case t.status == http.StatusNotFound:
		return ErrNotFound
	case t.status != 0:
		return fmt.Errorf("status %d: %w", t.status, err)
	}
	return err
}
