package notify

import (
	"context"
	"log/slog"
	"time"

	"leadmarket/internal/models"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const enqueueTimeout = 5 * time.Second

// Broadcaster pushes a notification to the contractor's live connections.
type Broadcaster interface {
	Broadcast(contractorID string, notification models.Notification)
}

// Enqueuer is satisfied by *river.Client.
type Enqueuer interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Dispatcher is called after a business transaction has committed. Failures
// are logged and never reach the caller.
type Dispatcher struct {
	hub    Broadcaster
	queue  Enqueuer
	logger *slog.Logger
}

// NewDispatcher wires the live and durable channels. Either may be nil.
func NewDispatcher(hub Broadcaster, queue Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{hub: hub, queue: queue, logger: logger}
}

func (d *Dispatcher) Notify(ctx context.Context, notification models.Notification) {
	if d.hub != nil {
		d.hub.Broadcast(notification.ContractorID, notification)
	}
	if d.queue == nil {
		return
	}
	// The request may already be finishing; the enqueue gets its own deadline.
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if _, err := d.queue.Insert(insertCtx, DeliveryArgs{Notification: notification}, nil); err != nil {
		d.logger.Error("notification enqueue failed",
			"type", notification.Type,
			"contractor_id", notification.ContractorID,
			"error", err,
		)
	}
}
