package writer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/idempotency"
	"github.com/zoff-tech/reviewbot/pkg/processor"
	"github.com/zoff-tech/reviewbot/pkg/telemetry"
	"github.com/zoff-tech/reviewbot/schema"
)

// Trigger is told about every first-time enqueue.
type Trigger interface {
	Fire(ctx context.Context, kind processor.QueueKind)
}

// Inserter stores a new entry unless its idempotency key exists.
type Inserter[E schema.Entry] interface {
	Insert(ctx context.Context, entry E) (bool, error)
}

type InboxWriter struct {
	repo    Inserter[*schema.InboxEntry]
	keys    *idempotency.KeyGenerator
	trigger Trigger
	now     func() time.Time
	logger  *zap.Logger
}

func NewInboxWriter(repo Inserter[*schema.InboxEntry], keys *idempotency.KeyGenerator, trigger Trigger, logger *zap.Logger) *InboxWriter {
	return &InboxWriter{
		repo:    repo,
		keys:    keys,
		trigger: trigger,
		now:     time.Now,
		logger:  logger.Named("inbox_writer"),
	}
}

// Enqueue stores a raw interaction payload. It returns false when the same
// interaction was already stored, which is how Slack's redeliveries collapse.
func (w *InboxWriter) Enqueue(ctx context.Context, t schema.InteractionType, payload string) (bool, error) {
	scope, kind, err := inboxRoute(t)
	if err != nil {
		return false, err
	}

	entry := schema.NewInboxEntry(t, w.keys.Generate(scope, payload), payload, w.now())
	inserted, err := w.repo.Insert(ctx, entry)
	if err != nil {
		telemetry.EnqueueTotal.WithLabelValues(string(kind), "error").Inc()
		return false, fmt.Errorf("enqueue inbox entry: %w", err)
	}
	if !inserted {
		telemetry.EnqueueTotal.WithLabelValues(string(kind), "duplicate").Inc()
		w.logger.Debug("duplicate interaction ignored", zap.String("idempotency_key", entry.IdempotencyKey))
		return false, nil
	}

	telemetry.EnqueueTotal.WithLabelValues(string(kind), "inserted").Inc()
	if w.trigger != nil {
		w.trigger.Fire(ctx, kind)
	}
	return true, nil
}

func inboxRoute(t schema.InteractionType) (idempotency.Scope, processor.QueueKind, error) {
	switch t {
	case schema.InteractionBlockActions:
		return idempotency.ScopeInboxBlockActions, processor.QueueInboxBlockActions, nil
	case schema.InteractionViewSubmission:
		return idempotency.ScopeInboxViewSubmission, processor.QueueInboxViewSubmission, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedInteraction, t)
	}
}
