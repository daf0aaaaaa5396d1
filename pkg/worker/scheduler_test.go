package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/processor"
)

type fakeRunner struct {
	mu        sync.Mutex
	processed map[processor.QueueKind]int
	recovered map[processor.QueueKind]int
	sizes     map[processor.QueueKind]int
	panicOn   processor.QueueKind
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		processed: map[processor.QueueKind]int{},
		recovered: map[processor.QueueKind]int{},
		sizes:     map[processor.QueueKind]int{},
	}
}

func (f *fakeRunner) ProcessPending(_ context.Context, kind processor.QueueKind, batchSize int) processor.BatchResult {
	f.mu.Lock()
	f.processed[kind]++
	f.sizes[kind] = batchSize
	f.mu.Unlock()
	if kind == f.panicOn {
		panic("tick")
	}
	return processor.BatchResult{Fetched: 1, Succeeded: 1}
}

func (f *fakeRunner) RecoverStale(_ context.Context, kind processor.QueueKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovered[kind]++
	return 0, errors.New("recover failed")
}

func (f *fakeRunner) count(kind processor.QueueKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[kind]
}

func TestScheduler_RunsEnabledQueues(t *testing.T) {
	runner := newFakeRunner()
	runner.panicOn = processor.QueueInboxBlockActions

	s := NewScheduler(runner, zap.NewNop(),
		Queue{Kind: processor.QueueOutbox, Enabled: true, Interval: 5 * time.Millisecond, BatchSize: 7},
		Queue{Kind: processor.QueueInboxBlockActions, Enabled: true, Interval: 5 * time.Millisecond, BatchSize: 3},
		Queue{Kind: processor.QueueInboxViewSubmission, Enabled: false, Interval: 5 * time.Millisecond, BatchSize: 3},
	)
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return runner.count(processor.QueueOutbox) >= 2 && runner.count(processor.QueueInboxBlockActions) >= 2
	}, time.Second, 5*time.Millisecond, "ticks continue after errors and panics")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Zero(t, runner.processed[processor.QueueInboxViewSubmission])
	assert.Equal(t, 7, runner.sizes[processor.QueueOutbox])
	assert.Equal(t, 3, runner.sizes[processor.QueueInboxBlockActions])
	assert.GreaterOrEqual(t, runner.recovered[processor.QueueOutbox], 2)
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(newFakeRunner(), zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestScheduler_ShutdownWithoutStart(t *testing.T) {
	s := NewScheduler(newFakeRunner(), zap.NewNop())
	assert.NoError(t, s.Shutdown(context.Background()))
}
