package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/benvon/cinematch/cmd/configure/commands"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "cinematch-configure",
		Short:         "Operator tool for the Cinematch API",
		Long:          "Apply migrations, tune stored HTTP settings and drive user reconciliation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Read settings from this file before ./.env; the environment still wins")

	root.AddCommand(
		commands.NewMigrateCmd(),
		commands.NewListCmd(),
		commands.NewCorsCmd(),
		commands.NewRatelimitCmd(),
		commands.NewUsersCmd(),
		commands.NewTestCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
