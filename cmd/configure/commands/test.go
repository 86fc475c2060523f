package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/services/tmdb"
)

// check is one named connectivity probe. A nil run means the integration is
// not configured and the check is skipped.
type check struct {
	name string
	run  func(ctx context.Context) error
}

// NewTestCmd creates the test command.
func NewTestCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check database, Firebase JWKS and TMDB reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, closeDB, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			httpClient := &http.Client{Timeout: timeout}
			checks := []check{
				{name: "database", run: db.HealthCheck},
				{name: "firebase jwks", run: func(ctx context.Context) error {
					_, err := identity.NewJWKSManager(httpClient, time.Minute).Refresh(ctx, identity.FirebaseJWKSURL)
					return err
				}},
				{name: "tmdb"},
			}
			if cfg.TMDBBearerToken != "" {
				client, err := tmdb.NewClient(tmdb.Config{
					BaseURL:     cfg.TMDBURL,
					BearerToken: cfg.TMDBBearerToken,
				}, nil, zap.NewNop())
				if err != nil {
					return fmt.Errorf("failed to create tmdb client: %w", err)
				}
				checks[2].run = client.Ping
			}

			return runChecks(ctx, cmd.OutOrStdout(), timeout, checks)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-check timeout")
	return cmd
}

func runChecks(ctx context.Context, out io.Writer, timeout time.Duration, checks []check) error {
	failed := 0
	for _, c := range checks {
		if c.run == nil {
			fmt.Fprintf(out, "- %s: skipped (not configured)\n", c.name)
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := c.run(checkCtx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%s)\n", c.name, time.Since(start).Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}
