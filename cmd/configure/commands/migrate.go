package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
)

// NewMigrateCmd applies the embedded SQL migrations.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, _ *config.Config, db *database.DB) error {
				applied, err := db.Migrate(ctx)
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "  applied %s\n", name)
				}
				if err != nil {
					return fmt.Errorf("failed to migrate: %w", err)
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
				}
				return nil
			})
		},
	}
}
