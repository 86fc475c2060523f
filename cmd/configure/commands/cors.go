package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
)

// NewCorsCmd groups the CORS subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage allowed browser origins",
		Long:  "The stored policy replaces FRONTEND_URL. Running servers pick changes up within a minute.",
	}

	var (
		origins    string
		allowCreds bool
		maxAge     int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := normalizeOrigins(origins)
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}
			policy := &models.CorsConfig{AllowedOrigins: normalized, AllowCredentials: allowCreds, MaxAge: maxAge}
			return withDB(cmd, func(ctx context.Context, _ *config.Config, db *database.DB) error {
				if err := database.NewCorsConfigRepository(db).Set(ctx, policy); err != nil {
					return fmt.Errorf("failed to set cors config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "CORS policy stored for %s.\n", normalized)
				return nil
			})
		},
	}
	set.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	set.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Send Access-Control-Allow-Credentials")
	set.Flags().IntVar(&maxAge, "max-age", 86400, "Preflight cache lifetime in seconds")
	_ = set.MarkFlagRequired("origins")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				c, err := database.NewCorsConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("failed to get cors config: %w", err)
				}
				printCors(cmd.OutOrStdout(), c, cfg.FrontendURL)
				return nil
			})
		},
	}

	cmd.AddCommand(list, set)
	return cmd
}

func printCors(out io.Writer, c *models.CorsConfig, frontendURL string) {
	if c == nil {
		fmt.Fprintf(out, "No CORS policy stored; servers allow %s.\n", frontendURL)
		return
	}
	fmt.Fprintf(out, "Origins (updated %s):\n", c.UpdatedAt.Format(time.RFC3339))
	for _, origin := range database.AllowedOriginsSlice(c.AllowedOrigins) {
		fmt.Fprintf(out, "  %s\n", origin)
	}
	fmt.Fprintf(out, "Credentials: %t  Max-Age: %ds\n", c.AllowCredentials, c.MaxAge)
}

// normalizeOrigins checks that every entry is a scheme://host[:port] origin
// and returns them comma-joined without trailing slashes.
func normalizeOrigins(raw string) (string, error) {
	parts := database.AllowedOriginsSlice(raw)
	if len(parts) == 0 {
		return "", fmt.Errorf("--origins is required (comma-separated list)")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "*" {
			out = append(out, p)
			continue
		}
		u, err := url.Parse(strings.TrimRight(p, "/"))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" {
			return "", fmt.Errorf("invalid origin %q: want scheme://host[:port]", p)
		}
		out = append(out, u.Scheme+"://"+u.Host)
	}
	return strings.Join(out, ","), nil
}
