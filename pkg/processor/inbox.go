package processor

import (
	"context"

	"github.com/zoff-tech/reviewbot/pkg/source"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/schema"
)

// Handler is the business handler of one inbox interaction type. Errors wrapped
// with retry.BusinessInvariant are not retried.
type Handler interface {
	Handle(ctx context.Context, payload string) error
}

type HandlerFunc func(ctx context.Context, payload string) error

func (f HandlerFunc) Handle(ctx context.Context, payload string) error {
	return f(ctx, payload)
}

// Transactor runs fn in a database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// InboxWork runs handler in its own transaction with the entry bound as the
// causal source, so outbox rows it enqueues commit or roll back with it.
func InboxWork(handler Handler, tx Transactor) Work[*schema.InboxEntry] {
	return func(ctx context.Context, entry *schema.InboxEntry) error {
		run := func(ctx context.Context) error {
			return source.RunWithInbox(ctx, entry.ID.String(), func(ctx context.Context) error {
				return handler.Handle(ctx, entry.Payload)
			})
		}
		if tx == nil {
			return run(ctx)
		}
		return tx.WithinTransaction(ctx, run)
	}
}

// NewInboxEngine returns the engine of one inbox interaction queue.
func NewInboxEngine(kind QueueKind, repo store.QueueRepository[*schema.InboxEntry], handler Handler, tx Transactor, opts ...Option) *Engine[*schema.InboxEntry] {
	return NewEngine(kind, repo, InboxWork(handler, tx), schema.StatusProcessed, opts...)
}
