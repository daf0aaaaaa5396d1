package writer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/processor"
)

// BatchRunner runs one processPending pass for a queue.
type BatchRunner interface {
	ProcessPending(ctx context.Context, kind processor.QueueKind, batchSize int) processor.BatchResult
}

// PostCommitRegistry defers work until the transaction bound to ctx commits.
type PostCommitRegistry interface {
	AfterCommit(ctx context.Context, fn func(ctx context.Context)) bool
}

// ImmediateTrigger starts processing right after a first-time enqueue. Inside a
// transaction the run is deferred until commit and dropped on rollback. It only
// lowers latency; the periodic workers pick up anything it misses.
type ImmediateTrigger struct {
	runner     BatchRunner
	tx         PostCommitRegistry
	batchSizes map[processor.QueueKind]int
	async      bool
	wg         sync.WaitGroup
	logger     *zap.Logger
}

const defaultTriggerBatchSize = 10

type TriggerOption func(*ImmediateTrigger)

// WithBatchSize sets the batch size used when kind is triggered.
func WithBatchSize(kind processor.QueueKind, size int) TriggerOption {
	return func(t *ImmediateTrigger) {
		if size > 0 {
			t.batchSizes[kind] = size
		}
	}
}

// WithAsync runs triggered passes on their own goroutine instead of the caller's.
func WithAsync() TriggerOption {
	return func(t *ImmediateTrigger) { t.async = true }
}

func WithTriggerLogger(l *zap.Logger) TriggerOption {
	return func(t *ImmediateTrigger) { t.logger = l }
}

func NewImmediateTrigger(runner BatchRunner, tx PostCommitRegistry, opts ...TriggerOption) *ImmediateTrigger {
	t := &ImmediateTrigger{
		runner:     runner,
		tx:         tx,
		batchSizes: make(map[processor.QueueKind]int),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("trigger")
	return t
}

// Fire schedules a processing pass for kind.
func (t *ImmediateTrigger) Fire(ctx context.Context, kind processor.QueueKind) {
	if t.tx != nil && t.tx.AfterCommit(ctx, func(ctx context.Context) { t.dispatch(ctx, kind) }) {
		t.logger.Debug("processing deferred until commit", zap.String("queue", string(kind)))
		return
	}
	t.dispatch(ctx, kind)
}

// Wait blocks until asynchronous passes started by Fire have finished.
func (t *ImmediateTrigger) Wait() {
	t.wg.Wait()
}

func (t *ImmediateTrigger) dispatch(ctx context.Context, kind processor.QueueKind) {
	// The pass must outlive the request that enqueued the row.
	ctx = context.WithoutCancel(ctx)
	if !t.async {
		t.run(ctx, kind)
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(ctx, kind)
	}()
}

func (t *ImmediateTrigger) run(ctx context.Context, kind processor.QueueKind) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("triggered processing panicked", zap.String("queue", string(kind)), zap.Any("panic", r))
		}
	}()

	size, ok := t.batchSizes[kind]
	if !ok {
		size = defaultTriggerBatchSize
	}
	res := t.runner.ProcessPending(ctx, kind, size)
	t.logger.Debug("triggered processing finished",
		zap.String("queue", string(kind)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed))
}
