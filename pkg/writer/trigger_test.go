package writer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoff-tech/reviewbot/pkg/processor"
	"github.com/zoff-tech/reviewbot/pkg/store"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []processor.QueueKind
	sizes []int
	ctxs  []context.Context
	panic bool
}

func (f *fakeRunner) ProcessPending(ctx context.Context, kind processor.QueueKind, batchSize int) processor.BatchResult {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.sizes = append(f.sizes, batchSize)
	f.ctxs = append(f.ctxs, ctx)
	shouldPanic := f.panic
	f.mu.Unlock()
	if shouldPanic {
		panic("runner")
	}
	return processor.BatchResult{}
}

func TestTrigger_RunsSynchronouslyWithoutTransaction(t *testing.T) {
	runner := &fakeRunner{}
	trigger := NewImmediateTrigger(runner, nil, WithBatchSize(processor.QueueOutbox, 25))

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Fire(ctx, processor.QueueOutbox)
	cancel()

	require.Len(t, runner.calls, 1)
	assert.Equal(t, processor.QueueOutbox, runner.calls[0])
	assert.Equal(t, 25, runner.sizes[0])
	assert.NoError(t, runner.ctxs[0].Err(), "pass is detached from caller cancellation")
}

func TestTrigger_DefersUntilCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tx := store.NewTxManager(db)
	runner := &fakeRunner{}
	trigger := NewImmediateTrigger(runner, tx)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		trigger.Fire(ctx, processor.QueueInboxBlockActions)
		assert.Empty(t, runner.calls, "must not run before commit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []processor.QueueKind{processor.QueueInboxBlockActions}, runner.calls)
	assert.Equal(t, []int{defaultTriggerBatchSize}, runner.sizes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrigger_NeverRunsOnRollback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tx := store.NewTxManager(db)
	runner := &fakeRunner{}
	trigger := NewImmediateTrigger(runner, tx)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		trigger.Fire(ctx, processor.QueueOutbox)
		return errors.New("business rule violated")
	})

	assert.Error(t, err)
	assert.Empty(t, runner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrigger_RecoversFromPanic(t *testing.T) {
	runner := &fakeRunner{panic: true}
	trigger := NewImmediateTrigger(runner, nil)

	assert.NotPanics(t, func() { trigger.Fire(context.Background(), processor.QueueOutbox) })
	assert.Len(t, runner.calls, 1)
}

func TestTrigger_Async(t *testing.T) {
	runner := &fakeRunner{}
	trigger := NewImmediateTrigger(runner, nil, WithAsync())

	trigger.Fire(context.Background(), processor.QueueOutbox)
	trigger.Fire(context.Background(), processor.QueueOutbox)
	trigger.Wait()

	assert.Len(t, runner.calls, 2)
}
