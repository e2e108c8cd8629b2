package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/boardinghub/boardinghub-api/pkg/jobs"
)

// QueuedService decouples mail delivery from the request path by pushing
// messages through a background queue. Send reports success once the message
// is queued; delivery itself stays best-effort.
type QueuedService struct {
	delegate Service
	queue    *jobs.Queue
}

// NewQueued wraps a delivery backend with an in-memory queue.
func NewQueued(delegate Service, cfg jobs.QueueConfig) *QueuedService {
	s := &QueuedService{delegate: delegate}
	s.queue = jobs.NewQueue("mail", s.deliver, cfg)
	return s
}

// Start launches the delivery workers.
func (s *QueuedService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *QueuedService) Stop() {
	s.queue.Stop()
}

// Send queues the message for background delivery.
func (s *QueuedService) Send(ctx context.Context, msg Message) (Result, error) {
	if len(msg.To) == 0 {
		return Result{}, fmt.Errorf("message has no recipients")
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:       uuid.NewString(),
		Type:     "mail",
		Payload:  msg,
		Enqueued: time.Now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (s *QueuedService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		return fmt.Errorf("unexpected mail payload %T", job.Payload)
	}
	_, err := s.delegate.Send(ctx, msg)
	return err
}
