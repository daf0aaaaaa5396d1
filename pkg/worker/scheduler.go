package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/processor"
)

// Runner is the dispatcher surface the scheduler drives.
type Runner interface {
	ProcessPending(ctx context.Context, kind processor.QueueKind, batchSize int) processor.BatchResult
	RecoverStale(ctx context.Context, kind processor.QueueKind) (int64, error)
}

// Queue configures the periodic sweep of one queue.
type Queue struct {
	Kind      processor.QueueKind
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// Scheduler runs a ticker per enabled queue. Each tick releases stale claims and
// then processes one batch. A failing tick is logged and the schedule continues.
type Scheduler struct {
	runner Runner
	queues []Queue
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func NewScheduler(runner Runner, logger *zap.Logger, queues ...Queue) *Scheduler {
	return &Scheduler{
		runner: runner,
		queues: queues,
		logger: logger.Named("scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, q := range s.queues {
		if !q.Enabled {
			s.logger.Info("queue worker disabled", zap.String("queue", string(q.Kind)))
			continue
		}
		if q.Interval <= 0 || q.BatchSize <= 0 {
			s.logger.Warn("queue worker misconfigured, skipping",
				zap.String("queue", string(q.Kind)),
				zap.Duration("interval", q.Interval),
				zap.Int("batch_size", q.BatchSize))
			continue
		}
		q := q
		s.worker(q.Interval, func() { s.tick(q) })
		s.logger.Info("queue worker started",
			zap.String("queue", string(q.Kind)),
			zap.Duration("interval", q.Interval),
			zap.Int("batch_size", q.BatchSize))
	}

	return nil
}

func (s *Scheduler) tick(q Queue) {
	logger := s.logger.With(zap.String("queue", string(q.Kind)))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queue tick panicked", zap.Any("panic", r))
		}
	}()

	if _, err := s.runner.RecoverStale(s.ctx, q.Kind); err != nil {
		logger.Error("stale claim recovery failed", zap.Error(err))
	}

	res := s.runner.ProcessPending(s.ctx, q.Kind, q.BatchSize)
	if res.Fetched > 0 {
		logger.Debug("queue tick finished",
			zap.Int("fetched", res.Fetched),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
			zap.Int("retried", res.Retried),
			zap.Int("skipped", res.Skipped))
	}
}

func (s *Scheduler) worker(interval time.Duration, task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

// Shutdown stops the tickers and waits for in-flight ticks until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
