package notify

import (
	"context"
	"fmt"

	"leadmarket/internal/models"

	"github.com/riverqueue/river"
)

type DeliveryArgs struct {
	Notification models.Notification `json:"notification"`
}

func (DeliveryArgs) Kind() string { return "lead_notification" }

func (DeliveryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 10}
}

// Sink delivers a notification to the outside world.
type Sink interface {
	Deliver(ctx context.Context, notification models.Notification) error
}

// DeliveryWorker hands queued notifications to the configured sink. A
// returned error makes River retry the job with backoff.
type DeliveryWorker struct {
	river.WorkerDefaults[DeliveryArgs]
	sink Sink
}

func NewDeliveryWorker(sink Sink) *DeliveryWorker {
	return &DeliveryWorker{sink: sink}
}

func (w *DeliveryWorker) Work(ctx context.Context, job *river.Job[DeliveryArgs]) error {
	if err := w.sink.Deliver(ctx, job.Args.Notification); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", job.Args.Notification.Type, job.Args.Notification.ContractorID, err)
	}
	return nil
}
