package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/task"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

// Dispatcher accepts a job request, records it and hands it to the queue.
// It never waits for execution to start or finish.
type Dispatcher struct {
	store  *taskstore.Store
	queue  *queue.Queue
	logger *slog.Logger
}

func New(store *taskstore.Store, q *queue.Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: q, logger: logger}
}

// Enqueue validates args for the kind, creates the PENDING record and
// publishes the job descriptor, returning the fresh task id.
//
// The two writes are treated as one logical unit: the record is written
// first, and if the publish fails the record is marked FAILURE with the
// infrastructure cause so no task is ever left PENDING forever and no queue
// message can point at a missing record.
func (d *Dispatcher) Enqueue(ctx context.Context, kind task.Kind, args json.RawMessage) (string, error) {
	if _, err := task.ValidateArgs(kind, args); err != nil {
		return "", err
	}

	t := task.New(uuid.New().String(), kind, args)
	if err := d.store.Create(ctx, t); err != nil {
		return "", err
	}

	msg := queue.Message{TaskID: t.ID, Kind: kind, Args: args}
	if err := d.queue.Publish(ctx, msg); err != nil {
		cause := fmt.Sprintf("enqueue failed: %v", err)
		if markErr := d.store.MarkFailure(ctx, t.ID, cause); markErr != nil {
			d.logger.Error("could not mark orphaned task as failed",
				"task_id", t.ID, "error", markErr)
		}
		return "", err
	}

	return t.ID, nil
}
