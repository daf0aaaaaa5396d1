package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/idempotency"
	"github.com/zoff-tech/reviewbot/pkg/processor"
	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/source"
	"github.com/zoff-tech/reviewbot/pkg/telemetry"
	"github.com/zoff-tech/reviewbot/schema"
)

var (
	// ErrMissingSourceKey rejects an outbound message with no causal source.
	ErrMissingSourceKey = errors.New("writer: no source key bound for outbox message")
	// ErrUnsupportedInteraction rejects interaction types without an inbox queue.
	ErrUnsupportedInteraction = errors.New("writer: unsupported interaction type")
)

// OutboxMessage is an already built Slack notification.
type OutboxMessage struct {
	Type         schema.MessageType `validate:"required"`
	TeamID       string             `validate:"required"`
	ChannelID    string             `validate:"required"`
	UserID       string             `validate:"required_if=Type EPHEMERAL_TEXT,required_if=Type EPHEMERAL_BLOCKS"`
	Text         string             `validate:"required_if=Type EPHEMERAL_TEXT,required_if=Type CHANNEL_TEXT"`
	Blocks       string             `validate:"required_if=Type EPHEMERAL_BLOCKS,required_if=Type CHANNEL_BLOCKS"`
	FallbackText string
	// SourceKey overrides the source bound to the context.
	SourceKey source.Key
}

type OutboxWriter struct {
	repo     Inserter[*schema.OutboxEntry]
	keys     *idempotency.KeyGenerator
	trigger  Trigger
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

func NewOutboxWriter(repo Inserter[*schema.OutboxEntry], keys *idempotency.KeyGenerator, trigger Trigger, logger *zap.Logger) *OutboxWriter {
	return &OutboxWriter{
		repo:     repo,
		keys:     keys,
		trigger:  trigger,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.Named("outbox_writer"),
	}
}

// Enqueue stores msg for delivery. Call it in the transaction of the state change
// that caused the message. The idempotency key covers the source and the routing
// target, so the same cause notifying the same target twice yields one row.
// A missing source or an invalid message is returned as a business invariant:
// an inbox handler calling Enqueue fails on the first attempt.
func (w *OutboxWriter) Enqueue(ctx context.Context, msg OutboxMessage) (bool, error) {
	src := msg.SourceKey
	if src == "" {
		bound, ok := source.FromContext(ctx)
		if !ok {
			return false, retry.BusinessInvariant(ErrMissingSourceKey)
		}
		src = bound
	}

	if err := w.validate.Struct(msg); err != nil {
		return false, retry.BusinessInvariant(fmt.Errorf("invalid outbox message: %w", err))
	}

	payload := idempotency.OutboxPayload{
		SourceKey:   src.String(),
		MessageType: string(msg.Type),
		TeamID:      msg.TeamID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
	}
	key := w.keys.Generate(idempotency.ScopeOutbox, payload.Encode())

	entry := schema.NewOutboxEntry(msg.Type, key, src.String(),
		msg.TeamID, msg.ChannelID, msg.UserID,
		msg.Text, msg.Blocks, msg.FallbackText, w.now())

	inserted, err := w.repo.Insert(ctx, entry)
	if err != nil {
		telemetry.EnqueueTotal.WithLabelValues(string(processor.QueueOutbox), "error").Inc()
		return false, fmt.Errorf("enqueue outbox entry: %w", err)
	}
	if !inserted {
		telemetry.EnqueueTotal.WithLabelValues(string(processor.QueueOutbox), "duplicate").Inc()
		w.logger.Debug("duplicate notification suppressed",
			zap.String("source", src.String()),
			zap.String("message_type", string(msg.Type)))
		return false, nil
	}

	telemetry.EnqueueTotal.WithLabelValues(string(processor.QueueOutbox), "inserted").Inc()
	if w.trigger != nil {
		w.trigger.Fire(ctx, processor.QueueOutbox)
	}
	return true, nil
}
