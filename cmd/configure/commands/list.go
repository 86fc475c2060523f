package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured integrations and stored HTTP settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, closeDB, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			printIntegrations(out, cfg)

			cors, err := database.NewCorsConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get cors config: %w", err)
			}
			rl, err := database.NewRatelimitConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get ratelimit config: %w", err)
			}

			fmt.Fprintln(out, "\nStored HTTP settings:")
			if cors == nil {
				fmt.Fprintf(out, "  CORS: not set (falls back to %s)\n", cfg.FrontendURL)
			} else {
				fmt.Fprintf(out, "  CORS: %s (credentials=%v, max-age=%d)\n", cors.AllowedOrigins, cors.AllowCredentials, cors.MaxAge)
			}
			if rl == nil {
				fmt.Fprintln(out, "  Rate limit: not set (default applies)")
			} else {
				fmt.Fprintf(out, "  Rate limit: %s\n", rl.Rate)
			}
			return nil
		},
	}
}

func printIntegrations(out io.Writer, cfg *config.Config) {
	status := func(ok bool) string {
		if ok {
			return "configured"
		}
		return "not configured"
	}
	fmt.Fprintln(out, "Integrations:")
	fmt.Fprintf(out, "  Firebase (%s): %s\n", cfg.FirebaseProjectID, status(cfg.FirebaseEnabled()))
	fmt.Fprintf(out, "  Store auth: %s\n", status(cfg.SupabaseEnabled()))
	fmt.Fprintf(out, "  TMDB: %s\n", status(cfg.TMDBBearerToken != ""))
	fmt.Fprintf(out, "  AI (%s): %s\n", cfg.AIModel, status(cfg.AIAPIKey != ""))
	fmt.Fprintf(out, "  Legacy sessions: %s\n", status(cfg.SessionSecret != ""))
	fmt.Fprintf(out, "  Dev mode: %v\n", cfg.DevMode)
}
