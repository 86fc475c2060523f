// Package storeauth talks to the admin API of the store's own auth subsystem
// (Supabase GoTrue). Every user reconciled from the identity provider gets a
// mirror account here so row-level policies can resolve it.
package storeauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/benvon/cinematch/internal/breaker"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
)

const (
	authPath        = "/auth/v1"
	defaultPageSize = 200
	requestTimeout  = 15 * time.Second
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store auth returned status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Client calls the GoTrue admin endpoints with the service-role key.
type Client struct {
	api       gotrue.Client
	transport http.RoundTripper
	limiter   *rate.Limiter
	breaker   *breaker.Breaker[any]
	pageSize  int
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the underlying transport. The bearer header is
// still attached.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPageSize sets the per_page value used when listing.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates an admin client for the project at baseURL.
func NewClient(baseURL, serviceKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, errors.New("store auth url and service key are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Limit(10), 5),
		pageSize:  defaultPageSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: serviceKey, TokenType: "Bearer"}),
		Base:   c.transport,
	}
	c.api = gotrue.New("", serviceKey).WithCustomGoTrueURL(strings.TrimRight(baseURL, "/") + authPath)

	c.breaker = breaker.New[any]("storeauth", breaker.Settings{
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
	}, logger)
	return c, nil
}

func toModel(u *types.User) *models.AuthUser {
	return &models.AuthUser{
		ID:          u.ID.String(),
		Email:       u.Email,
		AppMetadata: u.AppMetadata,
		CreatedAt:   u.CreatedAt,
	}
}

// FindUserByEmail pages through the admin listing and returns the user whose
// email matches case-insensitively, or nil when there is none.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	var found *models.AuthUser
	err := c.eachPage(ctx, func(users []types.User) bool {
		for i := range users {
			if strings.EqualFold(users[i].Email, email) {
				found = toModel(&users[i])
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find store auth user: %w", err)
	}
	return found, nil
}

// ListUsers returns every auth user.
func (c *Client) ListUsers(ctx context.Context) ([]*models.AuthUser, error) {
	var out []*models.AuthUser
	err := c.eachPage(ctx, func(users []types.User) bool {
		for i := range users {
			out = append(out, toModel(&users[i]))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list store auth users: %w", err)
	}
	return out, nil
}

// CreateUser creates a confirmed auth user.
func (c *Client) CreateUser(ctx context.Context, email, password string, appMetadata map[string]any) (*models.AuthUser, error) {
	req := types.AdminCreateUserRequest{
		Email:        email,
		Password:     &password,
		EmailConfirm: true,
		AppMetadata:  appMetadata,
	}
	var created *types.AdminCreateUserResponse
	err := c.call(ctx, "create_user", nil, func(api gotrue.Client) error {
		var err error
		created, err = api.AdminCreateUser(req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store auth user: %w", err)
	}
	return toModel(&created.User), nil
}

// DeleteUser removes an auth user. A missing user is not an error.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid store auth user id %q: %w", id, err)
	}
	err = c.call(ctx, "delete_user", nil, func(api gotrue.Client) error {
		return api.AdminDeleteUser(types.AdminDeleteUserRequest{UserID: userID})
	})
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete store auth user: %w", err)
	}
	return nil
}

// eachPage walks the listing until fn returns false or a short page arrives.
func (c *Client) eachPage(ctx context.Context, fn func([]types.User) bool) error {
	for page := 1; ; page++ {
		query := map[string]string{
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(c.pageSize),
		}
		var resp *types.AdminListUsersResponse
		err := c.call(ctx, "list_users", query, func(api gotrue.Client) error {
			var err error
			resp, err = api.AdminListUsers()
			return err
		})
		if err != nil {
			return err
		}
		if !fn(resp.Users) || len(resp.Users) < c.pageSize {
			return nil
		}
	}
}

// call runs one admin request through the limiter and breaker. The GoTrue
// client has no context or paging parameters, so both travel on a per-call
// transport that also records the response status.
func (c *Client) call(ctx context.Context, operation string, query map[string]string, fn func(gotrue.Client) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.ExternalRequestDuration.WithLabelValues("storeauth", operation).Observe(time.Since(start).Seconds())
	}()

	_, err := c.breaker.Execute(func() (any, error) {
		rt := &callTransport{ctx: ctx, base: c.transport, query: query}
		err := fn(c.api.WithClient(http.Client{Transport: rt, Timeout: requestTimeout}))
		if err != nil && rt.status >= http.StatusMultipleChoices {
			c.logger.Debug("storeauth_request_failed",
				zap.String("operation", operation),
				zap.Int("status", rt.status),
			)
			return nil, &StatusError{StatusCode: rt.status, Err: err}
		}
		return nil, err
	})
	return err
}

// callTransport binds one request to ctx, appends query parameters and keeps
// the status code of the last response.
type callTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	query  map[string]string
	status int
}

func (t *callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := req.URL.Query()
		for k, v := range t.query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		t.status = resp.StatusCode
	}
	return resp, err
}
