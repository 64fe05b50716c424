package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tkteam/meeting-assistant/internal/task"
)

const (
	taskPrefix = "meetingassist:task:"
	recordTTL  = 24 * time.Hour

	// WATCH retries before giving up on a contended record.
	maxTxRetries = 5
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrTerminalState is returned when a write targets a task that already
	// reached SUCCESS, FAILURE or REVOKED. Executors treat it as a signal to
	// stop: the other side of a cancellation race has already landed.
	ErrTerminalState      = errors.New("task is in a terminal state")
	ErrProgressRegression = errors.New("progress must not decrease within an attempt")
)

// errSkipWrite aborts an update without touching the record.
var errSkipWrite = errors.New("skip write")

// Store keeps one JSON record per task id in Redis. Records expire with the
// store's retention TTL; every mutation is a single atomic upsert guarded by
// an optimistic WATCH transaction.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func taskKey(id string) string {
	return taskPrefix + id
}

// Create writes the initial PENDING record.
func (s *Store) Create(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(t.ID), data, recordTTL).Err(); err != nil {
		return fmt.Errorf("%w: create task record: %v", task.ErrInfrastructure, err)
	}
	return nil
}

// Get returns the current snapshot of a task. Reads are idempotent and safe
// at arbitrary polling frequency.
func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get task record: %v", task.ErrInfrastructure, err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

// update applies mutate under WATCH so concurrent writers (a worker and a
// cancelling controller) serialize on the record; whoever lands a terminal
// state first wins and the loser gets ErrTerminalState from its next write.
func (s *Store) update(ctx context.Context, id string, mutate func(*task.Task) error) error {
	key := taskKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: read task record: %v", task.ErrInfrastructure, err)
		}

		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("unmarshal task: %w", err)
		}
		if err := mutate(&t); err != nil {
			if errors.Is(err, errSkipWrite) {
				return nil
			}
			return err
		}
		t.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&t)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, recordTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: task %s: too many write conflicts", task.ErrInfrastructure, id)
}

// UpdateProgress upserts the progress field and moves PENDING tasks to
// PROGRESS. A terminal record rejects the write, which is the cooperative
// cancellation check an executor performs before each step.
func (s *Store) UpdateProgress(ctx context.Context, id string, p task.Progress) error {
	if p.Total > 0 && p.Current > p.Total {
		return fmt.Errorf("progress current %d exceeds total %d", p.Current, p.Total)
	}
	return s.update(ctx, id, func(t *task.Task) error {
		if t.State.Terminal() {
			return ErrTerminalState
		}
		if t.Progress != nil && p.Current < t.Progress.Current {
			return ErrProgressRegression
		}
		t.State = task.StateProgress
		t.Progress = &p
		return nil
	})
}

// MarkSuccess records the terminal SUCCESS state with the kind-specific result.
func (s *Store) MarkSuccess(ctx context.Context, id string, res task.Result) error {
	return s.update(ctx, id, func(t *task.Task) error {
		if t.State.Terminal() {
			return ErrTerminalState
		}
		t.State = task.StateSuccess
		t.Result = &res
		t.Error = ""
		return nil
	})
}

// MarkFailure records the terminal FAILURE state with a human-readable cause.
func (s *Store) MarkFailure(ctx context.Context, id string, cause string) error {
	return s.update(ctx, id, func(t *task.Task) error {
		if t.State.Terminal() {
			return ErrTerminalState
		}
		t.State = task.StateFailure
		t.Error = cause
		return nil
	})
}

// MarkRevoked writes REVOKED unless the task already reached a terminal
// state, in which case it is a no-op. The resulting state is returned either
// way, so cancellation is idempotent for callers.
func (s *Store) MarkRevoked(ctx context.Context, id string) (task.State, error) {
	var final task.State
	err := s.update(ctx, id, func(t *task.Task) error {
		if t.State.Terminal() {
			final = t.State
			return errSkipWrite
		}
		t.State = task.StateRevoked
		final = task.StateRevoked
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}
