package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/middleware"
	"github.com/benvon/cinematch/internal/models"
)

// NewRatelimitCmd groups the rate limit subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the per-client API rate",
		Long:  "Rates use the <limit>-<period> form, for example 5-S or 100-M. Servers reload the stored rate every minute.",
	}

	var rate string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the stored rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := parseRate(rate)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := database.NewRatelimitConfigRepository(db).Set(ctx, &models.RatelimitConfig{Rate: normalized}); err != nil {
					return fmt.Errorf("failed to set ratelimit config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %s.\n", normalized)
				return nil
			})
		},
	}
	set.Flags().StringVar(&rate, "rate", "", "Rate such as 5-S, 100-M or 1000-H (required)")
	_ = set.MarkFlagRequired("rate")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the stored rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, _ *config.Config, db *database.DB) error {
				c, err := database.NewRatelimitConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("failed to get ratelimit config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), describeRate(c))
				return nil
			})
		},
	}

	cmd.AddCommand(list, set)
	return cmd
}

// parseRate upper-cases the period suffix and rejects malformed rates.
func parseRate(raw string) (string, error) {
	rate := strings.ToUpper(strings.TrimSpace(raw))
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid --rate %q (e.g. 5-S, 100-M, 1000-H): %w", raw, err)
	}
	return rate, nil
}

func describeRate(c *models.RatelimitConfig) string {
	if c == nil || c.Rate == "" {
		return fmt.Sprintf("No rate stored; servers seed and use %s.", middleware.DefaultRatelimitRate)
	}
	r, err := limiter.NewRateFromFormatted(c.Rate)
	if err != nil {
		return fmt.Sprintf("Rate: %s (invalid, servers use %s)", c.Rate, middleware.DefaultRatelimitRate)
	}
	return fmt.Sprintf("Rate: %s (%d requests per %s)", c.Rate, r.Limit, r.Period)
}
