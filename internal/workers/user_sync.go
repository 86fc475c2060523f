package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/reconcile"
	"github.com/benvon/cinematch/internal/telemetry"
)

// Reconciler is the reconcile.Reconciler surface the worker drives.
type Reconciler interface {
	ReconcileUID(ctx context.Context, uid string) (*models.StoreUser, error)
	ReconcileUpdate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
	ReconcileDelete(ctx context.Context, uid string) (bool, error)
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
}

// IdentityLookup fetches identity users by uid.
type IdentityLookup interface {
	GetUser(ctx context.Context, uid string) (*models.IdentityUser, error)
}

// ErrUnknownJobType is returned for job types this worker does not handle.
var ErrUnknownJobType = errors.New("unknown job type")

// UserSyncProcessor consumes reconcile_user and sync_all_users jobs.
type UserSyncProcessor struct {
	reconciler Reconciler
	identity   IdentityLookup
	logger     *zap.Logger
}

// NewUserSyncProcessor creates a processor.
func NewUserSyncProcessor(reconciler Reconciler, identity IdentityLookup, logger *zap.Logger) *UserSyncProcessor {
	return &UserSyncProcessor{
		reconciler: reconciler,
		identity:   identity,
		logger:     logger,
	}
}

// ProcessJob runs one message and settles it. Successful jobs are acked.
// Failed jobs are nacked without requeue, which dead-letters them; the next
// sweep repairs the user.
func (p *UserSyncProcessor) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.Job()
	start := time.Now()
	ctx, span := telemetry.StartJobSpan(ctx, string(job.Type), job.ID.String())
	err := p.run(ctx, job)
	telemetry.EndSpan(span, err)

	if err == nil {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "success").Inc()
		p.logger.Info("job_processed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Duration("duration", time.Since(start)),
		)
		return msg.Ack()
	}

	p.logger.Error("job_dead_lettered",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Error(err),
	)

	metrics.JobsProcessed.WithLabelValues(string(job.Type), "dead_lettered").Inc()
	if nackErr := msg.Nack(false); nackErr != nil {
		return fmt.Errorf("failed to nack job: %w (job error: %v)", nackErr, err)
	}
	return err
}

func (p *UserSyncProcessor) run(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeReconcileUser:
		return p.reconcileUser(ctx, job)
	case queue.JobTypeSyncAllUsers:
		res, err := p.reconciler.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed after %d users: %w", res.Processed, err)
		}
		p.logger.Info("sweep_job_completed",
			zap.String("job_id", job.ID.String()),
			zap.Int("processed", res.Processed),
			zap.Int("created", res.Created),
			zap.Int("failed", res.Failed),
		)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

func (p *UserSyncProcessor) reconcileUser(ctx context.Context, job *queue.Job) error {
	uid := job.Subject
	switch job.Action {
	case queue.ActionCreate, "":
		if _, err := p.reconciler.ReconcileUID(ctx, uid); err != nil {
			return fmt.Errorf("reconcile create %s: %w", logger.SanitizeUserID(uid), err)
		}
	case queue.ActionUpdate:
		u, err := p.identity.GetUser(ctx, uid)
		if err != nil {
			return fmt.Errorf("failed to get identity user: %w", err)
		}
		if _, err := p.reconciler.ReconcileUpdate(ctx, u); err != nil {
			return fmt.Errorf("reconcile update %s: %w", logger.SanitizeUserID(uid), err)
		}
	case queue.ActionDelete:
		if _, err := p.reconciler.ReconcileDelete(ctx, uid); err != nil {
			return fmt.Errorf("reconcile delete %s: %w", logger.SanitizeUserID(uid), err)
		}
	default:
		return fmt.Errorf("unknown reconcile action %q", job.Action)
	}
	return nil
}
