package processor

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Processor is the queue-agnostic face of an Engine.
type Processor interface {
	Kind() QueueKind
	ProcessPending(ctx context.Context, batchSize int) BatchResult
	RecoverStale(ctx context.Context) (int64, error)
}

// Dispatcher routes processPending calls to the engine of a queue kind.
// It is safe for concurrent use once built.
type Dispatcher struct {
	engines map[QueueKind]Processor
	logger  *zap.Logger
}

func NewDispatcher(logger *zap.Logger, engines ...Processor) *Dispatcher {
	d := &Dispatcher{
		engines: make(map[QueueKind]Processor, len(engines)),
		logger:  logger.Named("dispatcher"),
	}
	for _, e := range engines {
		d.engines[e.Kind()] = e
	}
	return d
}

// ProcessPending processes up to batchSize entries of the queue. Unknown queue
// kinds are logged and yield an empty result.
func (d *Dispatcher) ProcessPending(ctx context.Context, kind QueueKind, batchSize int) BatchResult {
	e, ok := d.engines[kind]
	if !ok {
		d.logger.Warn("no engine registered for queue", zap.String("queue", string(kind)))
		return BatchResult{}
	}
	return e.ProcessPending(ctx, batchSize)
}

// RecoverStale releases timed out claims of the queue.
func (d *Dispatcher) RecoverStale(ctx context.Context, kind QueueKind) (int64, error) {
	e, ok := d.engines[kind]
	if !ok {
		return 0, nil
	}
	return e.RecoverStale(ctx)
}

// Kinds lists the registered queues in a stable order.
func (d *Dispatcher) Kinds() []QueueKind {
	kinds := make([]QueueKind, 0, len(d.engines))
	for k := range d.engines {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
