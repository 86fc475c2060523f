package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/config"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/services/reconcile"
	"github.com/benvon/cinematch/internal/services/storeauth"
)

// NewUsersCmd creates the users command.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Reconcile identity provider users with the store",
	}
	cmd.AddCommand(newUsersSyncCmd())
	cmd.AddCommand(newUsersEnqueueSweepCmd())
	return cmd
}

func newUsersSyncCmd() *cobra.Command {
	var uid string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every identity user, or one with --uid, in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, closeDB, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			log, err := logger.New("cinematch-configure", true, verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync(log) }()

			reconciler, err := newReconciler(ctx, cfg, db, log)
			if err != nil {
				return err
			}
			return runSync(ctx, cmd.OutOrStdout(), reconciler, strings.TrimSpace(uid))
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "Reconcile only this identity provider uid")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log every reconciled user")
	return cmd
}

// syncer is the reconciler surface used by users sync.
type syncer interface {
	ReconcileUID(ctx context.Context, uid string) (*models.StoreUser, error)
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
}

func runSync(ctx context.Context, out io.Writer, r syncer, uid string) error {
	if uid != "" {
		user, err := r.ReconcileUID(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to reconcile %s: %w", uid, err)
		}
		fmt.Fprintf(out, "Reconciled %s -> usuario %d (%s)\n", uid, user.ID, user.Email)
		return nil
	}

	res, err := r.Sweep(ctx)
	fmt.Fprintf(out, "Processed %d users: %d created, %d existing, %d failed, %d claims set in %s\n",
		res.Processed, res.Created, res.Existing, res.Failed, res.ClaimsSet, res.Duration.Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("sweep stopped early: %w", err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d users failed to reconcile", res.Failed)
	}
	return nil
}

func newUsersEnqueueSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue-sweep",
		Short: "Queue a sync_all_users job for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
			if err != nil {
				return fmt.Errorf("failed to connect to rabbitmq: %w", err)
			}
			defer func() { _ = q.Close() }()

			job := queue.NewSweepJob()
			if err := q.Enqueue(cmd.Context(), job); err != nil {
				return fmt.Errorf("failed to enqueue sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued sweep job %s\n", job.ID)
			return nil
		},
	}
}

func newReconciler(ctx context.Context, cfg *config.Config, db *database.DB, log *zap.Logger) (*reconcile.Reconciler, error) {
	if !cfg.FirebaseEnabled() {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}
	fb, err := identity.NewFirebaseClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}
	var authAdmin reconcile.AuthAdmin
	if cfg.SupabaseEnabled() {
		sa, err := storeauth.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize store auth client: %w", err)
		}
		authAdmin = sa
	}
	return reconcile.New(database.NewUserRepository(db), fb, authAdmin, log), nil
}
