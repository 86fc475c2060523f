package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeReconcileUser reconciles a single identity provider uid.
	JobTypeReconcileUser JobType = "reconcile_user"
	// JobTypeSyncAllUsers runs a full sweep over every identity provider user.
	JobTypeSyncAllUsers JobType = "sync_all_users"
)

// ReconcileAction selects the reconciler operation a reconcile_user job runs.
type ReconcileAction string

const (
	ActionCreate ReconcileAction = "create"
	ActionUpdate ReconcileAction = "update"
	ActionDelete ReconcileAction = "delete"
)

// Valid reports whether a is a known action.
func (a ReconcileAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// sweepJobTTL keeps a backlog of stale sweeps from piling up behind a stopped worker.
const sweepJobTTL = time.Hour

// Job represents a job in the queue
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Type      JobType         `json:"type"`
	Subject   string          `json:"subject,omitempty"` // identity uid for reconcile_user
	Action    ReconcileAction `json:"action,omitempty"`
	NotBefore *time.Time      `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter  *time.Time      `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob creates a new job. Jobs are not retried automatically; a failed job
// goes to the dead letter queue and the next sweep repairs the user.
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:        uuid.New(),
		Type:      jobType,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now(),
	}
}

// NewReconcileJob creates a reconcile_user job for uid.
func NewReconcileJob(uid string, action ReconcileAction) (*Job, error) {
	if uid == "" {
		return nil, fmt.Errorf("reconcile job requires a uid")
	}
	if !action.Valid() {
		return nil, fmt.Errorf("unknown reconcile action %q", action)
	}
	job := NewJob(JobTypeReconcileUser)
	job.Subject = uid
	job.Action = action
	return job, nil
}

// NewSweepJob creates a sync_all_users job that expires if not picked up
// within an hour.
func NewSweepJob() *Job {
	job := NewJob(JobTypeSyncAllUsers)
	notAfter := job.CreatedAt.Add(sweepJobTTL)
	job.NotAfter = &notAfter
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}
