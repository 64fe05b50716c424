package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tkteam/meeting-assistant/internal/task"
)

const (
	pendingKey    = "meetingassist:jobs:pending"
	cancelChannel = "meetingassist:jobs:cancel"
)

// Message is the job descriptor the dispatcher publishes and a worker
// consumes. Args are duplicated from the store record so a worker can start
// without a read-back; the store record stays the source of truth for state.
type Message struct {
	TaskID string          `json:"task_id"`
	Kind   task.Kind       `json:"kind"`
	Args   json.RawMessage `json:"args"`
}

// NewClient connects to Redis and verifies the connection. The same client
// is shared by the queue and the task store.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// Queue is a durable at-least-once channel of job descriptors backed by a
// Redis list, plus a pub/sub channel carrying cancellation signals.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Publish appends one job descriptor to the pending list.
func (q *Queue) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job descriptor: %w", err)
	}
	if err := q.client.RPush(ctx, pendingKey, data).Err(); err != nil {
		return fmt.Errorf("%w: publish job: %v", task.ErrInfrastructure, err)
	}
	return nil
}

// Consume blocks up to timeout for the next job descriptor. A nil message
// with nil error means the wait timed out.
func (q *Queue) Consume(ctx context.Context, timeout time.Duration) (*Message, error) {
	result, err := q.client.BLPop(ctx, timeout, pendingKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("consume job: %w", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal job descriptor: %w", err)
	}
	return &msg, nil
}

// PublishCancel signals workers that the given task should stop. Delivery is
// best effort; the store's terminal-state guard is what actually decides a
// cancellation race.
func (q *Queue) PublishCancel(ctx context.Context, taskID string) error {
	return q.client.Publish(ctx, cancelChannel, taskID).Err()
}

// SubscribeCancels subscribes to the cancellation channel. The caller owns
// the returned PubSub and must close it.
func (q *Queue) SubscribeCancels(ctx context.Context) *redis.PubSub {
	return q.client.Subscribe(ctx, cancelChannel)
}
