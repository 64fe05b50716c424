package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkteam/meeting-assistant/internal/task"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client), mr
}

func TestQueue_PublishConsume(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	args, _ := json.Marshal(task.SummarizeArgs{TextContent: "notes", TargetLanguage: "English"})
	msg := Message{TaskID: "t-1", Kind: task.KindSummarize, Args: args}
	require.NoError(t, q.Publish(ctx, msg))

	got, err := q.Consume(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t-1", got.TaskID)
	assert.Equal(t, task.KindSummarize, got.Kind)
	assert.JSONEq(t, string(args), string(got.Args))
}

func TestQueue_ConsumeTimeout(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.Consume(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_ConsumeFIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(ctx, Message{TaskID: id, Kind: task.KindSummarize}))
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Consume(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.TaskID)
	}
}

func TestQueue_CancelSignal(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	pubsub := q.SubscribeCancels(ctx)
	defer pubsub.Close()

	// Wait until the subscription is established before publishing.
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, q.PublishCancel(ctx, "t-42"))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "t-42", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel signal was not delivered")
	}
}
