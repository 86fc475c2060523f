package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
)

// connect loads configuration and opens the database. The returned close
// function reports failures on stderr.
func connect(ctx context.Context) (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeDB, nil
}

// withDB runs fn against a freshly opened database and closes it afterwards.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, db *database.DB) error) error {
	ctx := cmd.Context()
	cfg, db, closeDB, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(ctx, cfg, db)
}
