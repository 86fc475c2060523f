package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestNewReconcileJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		uid     string
		action  ReconcileAction
		wantErr bool
	}{
		{name: "create", uid: "uid-1", action: ActionCreate},
		{name: "update", uid: "uid-1", action: ActionUpdate},
		{name: "delete", uid: "uid-1", action: ActionDelete},
		{name: "missing uid", uid: "", action: ActionCreate, wantErr: true},
		{name: "unknown action", uid: "uid-1", action: "merge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job, err := NewReconcileJob(tt.uid, tt.action)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewReconcileJob() error = %v", err)
			}
			if job.ID == uuid.Nil {
				t.Error("Expected job ID to be set")
			}
			if job.Type != JobTypeReconcileUser || job.Subject != tt.uid || job.Action != tt.action {
				t.Errorf("job = %+v", job)
			}
		})
	}
}

func TestNewSweepJob(t *testing.T) {
	t.Parallel()
	job := NewSweepJob()
	if job.Type != JobTypeSyncAllUsers {
		t.Errorf("Type = %s", job.Type)
	}
	if job.NotAfter == nil || !job.NotAfter.After(job.CreatedAt) {
		t.Errorf("NotAfter = %v, want after CreatedAt", job.NotAfter)
	}
	if job.IsExpired() {
		t.Error("fresh sweep job reported expired")
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tests := []struct {
		name string
		job  *Job
		want bool
	}{
		{name: "no time constraints", job: &Job{}, want: true},
		{name: "not before in past", job: &Job{NotBefore: timePtr(now.Add(-time.Hour))}, want: true},
		{name: "not before in future", job: &Job{NotBefore: timePtr(now.Add(time.Hour))}, want: false},
		{name: "not after in future", job: &Job{NotAfter: timePtr(now.Add(time.Hour))}, want: true},
		{name: "not after in past", job: &Job{NotAfter: timePtr(now.Add(-time.Hour))}, want: false},
		{
			name: "inside window",
			job:  &Job{NotBefore: timePtr(now.Add(-time.Hour)), NotAfter: timePtr(now.Add(time.Hour))},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_JSONFields(t *testing.T) {
	t.Parallel()
	job, err := NewReconcileJob("uid-9", ActionDelete)
	if err != nil {
		t.Fatalf("NewReconcileJob() error = %v", err)
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if raw["type"] != "reconcile_user" || raw["subject"] != "uid-9" || raw["action"] != "delete" {
		t.Errorf("encoded job = %s", b)
	}
	if _, ok := raw["retry_count"]; ok {
		t.Errorf("encoded job carries retry state: %s", b)
	}
}

func TestRabbitMQQueue_Publishing(t *testing.T) {
	t.Parallel()
	q := &RabbitMQQueue{exchangeName: "ex", delayedExchangeName: "delayed", delayedAvailable: true}

	job := NewSweepJob()
	exchange, p, err := q.publishing(job)
	if err != nil {
		t.Fatalf("publishing() error = %v", err)
	}
	if exchange != "ex" {
		t.Errorf("exchange = %q, want ex", exchange)
	}
	if p.Expiration == "" {
		t.Error("expected Expiration for a job with NotAfter")
	}
	if p.Type != string(JobTypeSyncAllUsers) || p.MessageId != job.ID.String() {
		t.Errorf("publishing = %+v", p)
	}

	delayed, _ := NewReconcileJob("uid-1", ActionCreate)
	delayed.NotBefore = timePtr(time.Now().Add(time.Minute))
	exchange, p, err = q.publishing(delayed)
	if err != nil {
		t.Fatalf("publishing() error = %v", err)
	}
	if exchange != "delayed" || p.Headers["x-delay"] == nil {
		t.Errorf("delayed job routed to %q with headers %v", exchange, p.Headers)
	}

	q.delayedAvailable = false
	if exchange, _, _ = q.publishing(delayed); exchange != "ex" {
		t.Errorf("without plugin exchange = %q, want ex", exchange)
	}
}
