package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tkteam/meeting-assistant/internal/executor"
	"github.com/tkteam/meeting-assistant/internal/queue"
	"github.com/tkteam/meeting-assistant/internal/taskstore"
)

const consumeTimeout = 2 * time.Second

// Pool runs N workers that pull job descriptors from the queue and execute
// them. Each claimed task gets its own cancellable context, registered so
// the cancellation listener can terminate it on a revoke signal.
type Pool struct {
	queue  *queue.Queue
	store  *taskstore.Store
	execs  *executor.Set
	count  int
	logger *slog.Logger

	wg            sync.WaitGroup
	activeCancels sync.Map // task id -> context.CancelFunc
}

func NewPool(q *queue.Queue, store *taskstore.Store, execs *executor.Set, count int, logger *slog.Logger) *Pool {
	return &Pool{
		queue:  q,
		store:  store,
		execs:  execs,
		count:  count,
		logger: logger,
	}
}

// Start launches the workers and the cancellation listener. They run until
// ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Add(1)
	go p.listenCancellations(ctx)
	p.logger.Info("workers started", "count", p.count)
}

// Stop waits for all workers to drain.
func (p *Pool) Stop() {
	p.wg.Wait()
	p.logger.Info("all workers stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := p.queue.Consume(ctx, consumeTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("consume failed", "worker", id, "error", err)
				continue
			}
			if msg == nil {
				continue
			}
			p.process(ctx, id, msg)
		}
	}
}

// listenCancellations subscribes to the revoke channel and cancels the
// context of any in-flight execution named by a signal.
func (p *Pool) listenCancellations(ctx context.Context) {
	defer p.wg.Done()

	pubsub := p.queue.SubscribeCancels(ctx)
	go func() {
		<-ctx.Done()
		_ = pubsub.Close()
	}()

	for msg := range pubsub.Channel() {
		if cancel, ok := p.activeCancels.Load(msg.Payload); ok {
			p.logger.Info("cancelling in-flight task", "task_id", msg.Payload)
			cancel.(context.CancelFunc)()
		}
	}
}

// process runs one claimed task. The first reporter update transitions the
// record PENDING -> PROGRESS; terminal writes that lose a cancellation race
// are dropped silently because the record already holds the winning state.
func (p *Pool) process(ctx context.Context, workerID int, msg *queue.Message) {
	log := p.logger.With("worker", workerID, "task_id", msg.TaskID, "kind", msg.Kind)
	log.Info("processing task")

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.activeCancels.Store(msg.TaskID, cancel)
	defer p.activeCancels.Delete(msg.TaskID)

	// Final store writes must survive both a revoked task context and pool
	// shutdown, so they use an uncancelled context.
	writeCtx := context.WithoutCancel(ctx)

	rep := executor.NewReporter(p.store, msg.TaskID)
	result, err := p.execs.Run(taskCtx, msg.Kind, msg.Args, rep)
	if err != nil {
		if errors.Is(err, taskstore.ErrTerminalState) {
			log.Info("task already terminal, aborting")
			return
		}
		log.Error("task failed", "error", err)
		if markErr := p.store.MarkFailure(writeCtx, msg.TaskID, err.Error()); markErr != nil &&
			!errors.Is(markErr, taskstore.ErrTerminalState) {
			log.Error("could not record task failure", "error", markErr)
		}
		return
	}

	if err := p.store.MarkSuccess(writeCtx, msg.TaskID, result); err != nil {
		if errors.Is(err, taskstore.ErrTerminalState) {
			log.Info("task finished after revoke, result dropped")
			return
		}
		log.Error("could not record task result", "error", err)
		return
	}
	log.Info("task completed")
}
