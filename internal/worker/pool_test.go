package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkteam/meeting-assistant/internal/ai"
	"github.com/tkteam/meeting-assistant/internal/executor"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/task"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

type poolFixture struct {
	pool  *Pool
	store *taskstore.Store
	queue *queue.Queue
}

func setupTestPool(t *testing.T, execs *executor.Set) *poolFixture {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := taskstore.New(client)
	q := queue.New(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &poolFixture{
		pool:  NewPool(q, store, execs, 1, logger),
		store: store,
		queue: q,
	}
}

func (f *poolFixture) submit(t *testing.T, kind task.Kind, args any) string {
	raw, err := json.Marshal(args)
	require.NoError(t, err)

	tsk := task.New("t-"+string(kind), kind, raw)
	require.NoError(t, f.store.Create(context.Background(), tsk))
	require.NoError(t, f.queue.Publish(context.Background(), queue.Message{
		TaskID: tsk.ID,
		Kind:   kind,
		Args:   raw,
	}))
	return tsk.ID
}

func (f *poolFixture) waitForState(t *testing.T, id string, want task.State) *task.Task {
	var got *task.Task
	require.Eventually(t, func() bool {
		tsk, err := f.store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = tsk
		return tsk.State == want
	}, 5*time.Second, 20*time.Millisecond, "task never reached %s", want)
	return got
}

func TestPool_ProcessSuccess(t *testing.T) {
	f := setupTestPool(t, &executor.Set{
		Assistant: &ai.MockAssistant{Answer: "the summary", ConversationID: "conv-1"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pool.Start(ctx)

	id := f.submit(t, task.KindSummarize, task.SummarizeArgs{
		TextContent:    "notes",
		TargetLanguage: "English",
	})

	got := f.waitForState(t, id, task.StateSuccess)
	require.NotNil(t, got.Result)
	assert.Equal(t, "the summary", got.Result.Summary)
	assert.Equal(t, "conv-1", got.Result.ConversationID)
	require.NotNil(t, got.Progress)
	assert.Equal(t, 100, got.Progress.Current)

	cancel()
	f.pool.Stop()
}

func TestPool_ProcessFailure(t *testing.T) {
	f := setupTestPool(t, &executor.Set{
		STT: &ai.MockTranscriber{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pool.Start(ctx)

	id := f.submit(t, task.KindTranscribe, task.TranscribeArgs{
		AudioPath:  "/nonexistent/audio.wav",
		OutputPath: "/nonexistent/out.txt",
		Language:   "auto",
	})

	got := f.waitForState(t, id, task.StateFailure)
	assert.NotEmpty(t, got.Error)
	assert.Nil(t, got.Result)

	cancel()
	f.pool.Stop()
}

func TestPool_RevokeStopsInFlightTask(t *testing.T) {
	started := make(chan struct{})
	f := setupTestPool(t, &executor.Set{
		Assistant: &ai.MockAssistant{
			ChatFunc: func(ctx context.Context, apiKey string, req ai.ChatRequest) (*ai.ChatResponse, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pool.Start(ctx)

	id := f.submit(t, task.KindSummarize, task.SummarizeArgs{
		TextContent:    "notes",
		TargetLanguage: "English",
	})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never started")
	}

	final, err := f.store.MarkRevoked(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, task.StateRevoked, final)
	require.NoError(t, f.queue.PublishCancel(context.Background(), id))

	// The worker's failure write must lose to the revoke and be dropped.
	got := f.waitForState(t, id, task.StateRevoked)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.Result)

	// Give the worker a moment to finish, then confirm nothing overwrote it.
	time.Sleep(200 * time.Millisecond)
	got, err = f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StateRevoked, got.State)

	cancel()
	f.pool.Stop()
}

func TestPool_RevokeBeforeStartIsFinal(t *testing.T) {
	f := setupTestPool(t, &executor.Set{
		Assistant: &ai.MockAssistant{Answer: "late result"},
	})

	// Revoke before any worker runs, then start the pool.
	id := f.submit(t, task.KindSummarize, task.SummarizeArgs{
		TextContent:    "notes",
		TargetLanguage: "English",
	})
	final, err := f.store.MarkRevoked(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, task.StateRevoked, final)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pool.Start(ctx)

	// The worker claims the message, but the first progress write hits the
	// terminal record and the task stays REVOKED.
	time.Sleep(500 * time.Millisecond)
	got, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, task.StateRevoked, got.State)
	assert.Nil(t, got.Result)

	cancel()
	f.pool.Stop()
}
