package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one consumed job awaiting settlement. Exactly one of Ack or
// Nack must be called.
type Delivery interface {
	Job() *Job
	Ack() error
	// Nack without requeue dead-letters the job.
	Nack(requeue bool) error
}

// Enqueuer publishes jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// Consumer streams deliveries until ctx ends or the broker closes the
// stream. Both returned channels are closed on exit.
type Consumer interface {
	Consume(ctx context.Context, prefetch int) (<-chan Delivery, <-chan error, error)
}

// JobQueue is a broker connection that both publishes and consumes.
type JobQueue interface {
	Enqueuer
	Consumer
	HealthCheck(ctx context.Context) error
	Close() error
}

// DLQPurger removes dead-lettered jobs older than retention and reports how
// many were dropped.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

type amqpDelivery struct {
	job *Job
	d   amqp.Delivery
}

func (a *amqpDelivery) Job() *Job               { return a.job }
func (a *amqpDelivery) Ack() error              { return a.d.Ack(false) }
func (a *amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }
