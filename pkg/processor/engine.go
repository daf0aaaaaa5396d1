package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/pkg/telemetry"
	"github.com/zoff-tech/reviewbot/schema"
)

// QueueKind names one of the delivery queues.
type QueueKind string

const (
	QueueInboxBlockActions   QueueKind = "INBOX_BLOCK_ACTIONS"
	QueueInboxViewSubmission QueueKind = "INBOX_VIEW_SUBMISSION"
	QueueOutbox              QueueKind = "OUTBOX"
)

// Work executes the unit of work of one claimed entry.
type Work[E schema.Entry] func(ctx context.Context, entry E) error

// DeadLetterPublisher is notified when an entry ends up FAILED.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, letter schema.DeadLetter) error
}

// BatchResult summarises one ProcessPending pass.
type BatchResult struct {
	Fetched   int
	Claimed   int
	Succeeded int
	Failed    int
	Retried   int
	Skipped   int
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeRetried
	outcomeAbandoned
)

func (o outcome) String() string {
	switch o {
	case outcomeSucceeded:
		return "succeeded"
	case outcomeFailed:
		return "failed"
	case outcomeRetried:
		return "retried"
	case outcomeAbandoned:
		return "abandoned"
	default:
		return "skipped"
	}
}

// errStop ends the retry loop once the outcome has been persisted.
var errStop = errors.New("processor: stop")

// Engine claims and processes the entries of one queue.
type Engine[E schema.Entry] struct {
	kind          QueueKind
	repo          store.QueueRepository[E]
	work          Work[E]
	successStatus schema.Status
	opts          options
	tracer        trace.Tracer
}

// NewEngine returns an engine that marks successful entries with successStatus.
func NewEngine[E schema.Entry](kind QueueKind, repo store.QueueRepository[E], work Work[E], successStatus schema.Status, opts ...Option) *Engine[E] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named("processor").With(zap.String("queue", string(kind)))

	return &Engine[E]{
		kind:          kind,
		repo:          repo,
		work:          work,
		successStatus: successStatus,
		opts:          o,
		tracer:        otel.Tracer("reviewbot/processor"),
	}
}

// Kind returns the queue the engine serves.
func (e *Engine[E]) Kind() QueueKind {
	return e.kind
}

// ProcessPending fetches up to batchSize claimable entries and processes each
// independently. It never returns an error: failures are persisted per entry
// and logged.
func (e *Engine[E]) ProcessPending(ctx context.Context, batchSize int) BatchResult {
	ctx, span := e.tracer.Start(ctx, "ProcessPending", trace.WithAttributes(
		attribute.String("queue", string(e.kind)),
		attribute.Int("batch_size", batchSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.BatchDuration.WithLabelValues(string(e.kind)).Observe(time.Since(start).Seconds())
	}()

	var result BatchResult
	now := e.opts.now()
	entries, err := e.repo.FindClaimable(ctx, batchSize, now.Add(-e.opts.processingTimeout))
	if err != nil {
		e.opts.logger.Error("failed to fetch claimable entries", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result
	}
	result.Fetched = len(entries)

	for _, entry := range entries {
		claimed, out := e.processEntry(ctx, entry.State().ID)
		if claimed {
			result.Claimed++
		}
		switch out {
		case outcomeSucceeded:
			result.Succeeded++
		case outcomeFailed:
			result.Failed++
		case outcomeRetried:
			result.Retried++
		case outcomeSkipped:
			result.Skipped++
		}
		telemetry.EntryOutcomes.WithLabelValues(string(e.kind), out.String()).Inc()
	}

	span.SetAttributes(
		attribute.Int("fetched", result.Fetched),
		attribute.Int("succeeded", result.Succeeded),
		attribute.Int("failed", result.Failed),
	)
	return result
}

// RecoverStale releases claims held longer than the processing timeout.
func (e *Engine[E]) RecoverStale(ctx context.Context) (int64, error) {
	now := e.opts.now()
	n, err := e.repo.RecoverStale(ctx, now.Add(-e.opts.processingTimeout), now)
	if err != nil {
		return 0, fmt.Errorf("recover stale %s entries: %w", e.kind, err)
	}
	if n > 0 {
		telemetry.StaleRecovered.WithLabelValues(string(e.kind)).Add(float64(n))
		e.opts.logger.Warn("released stale processing claims", zap.Int64("count", n))
	}
	return n, nil
}

// processEntry runs claim, work and outcome persistence for one entry under the
// retry policy. A panic anywhere in it is contained to this entry.
func (e *Engine[E]) processEntry(ctx context.Context, id uuid.UUID) (claimed bool, out outcome) {
	logger := e.opts.logger.With(zap.Stringer("entry_id", id))

	ctx, span := e.tracer.Start(ctx, "ProcessEntry", trace.WithAttributes(
		attribute.String("queue", string(e.kind)),
		attribute.String("entry.id", id.String()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("entry processing panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			out = outcomeAbandoned
		}
	}()

	out = outcomeSkipped
	operation := func() error {
		now := e.opts.now()
		ok, err := e.repo.Claim(ctx, id, now, now.Add(-e.opts.processingTimeout))
		if err != nil {
			logger.Error("failed to claim entry", zap.Error(err))
			return backoff.Permanent(err)
		}
		if !ok {
			// Another worker owns it or it is already resolved.
			return backoff.Permanent(errStop)
		}
		claimed = true

		entry, err := e.repo.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Error("failed to reload claimed entry", zap.Error(err))
			}
			out = outcomeAbandoned
			return backoff.Permanent(err)
		}
		d := entry.State()
		attemptLogger := logger.With(zap.Int("attempt", d.ProcessingAttempt))
		span.SetAttributes(attribute.Int("entry.attempt", d.ProcessingAttempt))

		if d.ProcessingAttempt > e.opts.policy.MaxAttempts {
			out = e.fail(ctx, entry, schema.FailureRetryExhausted,
				fmt.Errorf("attempt %d exceeds limit of %d", d.ProcessingAttempt, e.opts.policy.MaxAttempts), attemptLogger)
			return backoff.Permanent(errStop)
		}

		workErr := e.execute(ctx, entry)
		if workErr == nil {
			out = e.succeed(ctx, entry, attemptLogger)
			return nil
		}
		span.RecordError(workErr)

		if e.opts.classifier.IsBusinessInvariant(workErr) {
			out = e.fail(ctx, entry, schema.FailureBusinessInvariant, workErr, attemptLogger)
			return backoff.Permanent(errStop)
		}
		if e.opts.policy.Exhausted(d.ProcessingAttempt) {
			out = e.fail(ctx, entry, schema.FailureRetryExhausted, workErr, attemptLogger)
			return backoff.Permanent(errStop)
		}

		out = e.markRetry(ctx, entry, workErr, attemptLogger)
		if out != outcomeRetried {
			return backoff.Permanent(errStop)
		}
		return workErr
	}

	b := backoff.WithContext(e.opts.policy.NewBackOff(), ctx)
	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying entry", zap.Error(err), zap.Duration("backoff", wait))
	}
	if err := backoff.RetryNotify(operation, b, notify); err != nil && ctx.Err() != nil && out == outcomeRetried {
		// The row stays RETRY_PENDING for the next sweep.
		logger.Info("retry loop interrupted", zap.Error(err))
	}
	return claimed, out
}

// execute runs the unit of work, turning a panic into a retryable error.
func (e *Engine[E]) execute(ctx context.Context, entry E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.work(ctx, entry)
}

func (e *Engine[E]) succeed(ctx context.Context, entry E, logger *zap.Logger) outcome {
	d := entry.State()
	now := e.opts.now()
	if err := transition(d, e.successStatus); err != nil {
		logger.Error("refusing to save entry outcome", zap.Error(err))
		return outcomeAbandoned
	}
	d.FailureType = schema.FailureNone
	d.FailureReason = ""
	d.CompletedAt = &now
	d.UpdatedAt = now

	if err := e.repo.Save(ctx, entry); err != nil {
		e.logSaveError(logger, err)
		return outcomeAbandoned
	}
	logger.Debug("entry processed", zap.Stringer("status", d.Status))
	return outcomeSucceeded
}

func (e *Engine[E]) fail(ctx context.Context, entry E, failureType schema.FailureType, cause error, logger *zap.Logger) outcome {
	d := entry.State()
	now := e.opts.now()
	if err := transition(d, schema.StatusFailed); err != nil {
		logger.Error("refusing to save entry outcome", zap.Error(err))
		return outcomeAbandoned
	}
	d.FailureType = failureType
	d.FailureReason = retry.FailureReason(cause, e.opts.maxReasonLength)
	d.CompletedAt = &now
	d.UpdatedAt = now

	if err := e.repo.Save(ctx, entry); err != nil {
		e.logSaveError(logger, err)
		return outcomeAbandoned
	}
	logger.Warn("entry failed",
		zap.String("failure_type", string(failureType)),
		zap.String("failure_reason", d.FailureReason))

	if e.opts.deadLetters != nil {
		letter := schema.DeadLetter{
			Queue:          string(e.kind),
			EntryID:        d.ID,
			IdempotencyKey: d.IdempotencyKey,
			FailureType:    failureType,
			FailureReason:  d.FailureReason,
			Attempt:        d.ProcessingAttempt,
			FailedAt:       now,
		}
		if err := e.opts.deadLetters.PublishDeadLetter(ctx, letter); err != nil {
			logger.Error("failed to publish dead letter", zap.Error(err))
		}
	}
	return outcomeFailed
}

func (e *Engine[E]) markRetry(ctx context.Context, entry E, cause error, logger *zap.Logger) outcome {
	d := entry.State()
	if err := transition(d, schema.StatusRetryPending); err != nil {
		logger.Error("refusing to save entry outcome", zap.Error(err))
		return outcomeAbandoned
	}
	d.FailureType = schema.FailureNone
	d.FailureReason = retry.FailureReason(cause, e.opts.maxReasonLength)
	d.UpdatedAt = e.opts.now()

	if err := e.repo.Save(ctx, entry); err != nil {
		e.logSaveError(logger, err)
		return outcomeAbandoned
	}
	logger.Info("entry scheduled for retry", zap.Error(cause))
	return outcomeRetried
}

var errIllegalTransition = errors.New("illegal status transition")

// transition moves d to next if the status lifecycle allows it.
func transition(d *schema.Delivery, next schema.Status) error {
	if !d.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, d.Status, next)
	}
	d.Status = next
	return nil
}

func (e *Engine[E]) logSaveError(logger *zap.Logger, err error) {
	if errors.Is(err, store.ErrClaimLost) {
		logger.Warn("claim lost before outcome was saved", zap.Error(err))
		return
	}
	logger.Error("failed to save entry outcome", zap.Error(err))
}
