// Package worker consumes wallet events one at a time and hands them to the
// session reconciler.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fheprop/internal/adapters/mq/queue"
	"github.com/okian/fheprop/pkg/logger"
	"github.com/okian/fheprop/pkg/metrics"
)

// Handler reacts to a wallet event, e.g. by recreating the encryption instance
// and refreshing projects for the new chain.
type Handler interface {
	HandleWalletEvent(ctx context.Context, e queue.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e queue.Event) error

// HandleWalletEvent implements Handler.
func (f HandlerFunc) HandleWalletEvent(ctx context.Context, e queue.Event) error {
	return f(ctx, e)
}

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// Worker processes wallet events in order.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the current event to finish.
	Shutdown(ctx context.Context) error
}

// Reconciler implements Worker with a single consumer so events are never reordered.
type Reconciler struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewReconciler creates a worker over queue.
func NewReconciler(q Queue, handler Handler, opts ...Option) *Reconciler {
	w := &Reconciler{
		queue:    q,
		handler:  handler,
		name:     "reconciler",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run implements Worker.
func (w *Reconciler) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing wallet event", logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker.
func (w *Reconciler) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Reconciler) Done() <-chan struct{} {
	return w.done
}

func (w *Reconciler) process(ctx context.Context, event queue.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.logger.Debug(ctx, "wallet event",
		logger.String("event_id", event.ID),
		logger.String("type", string(event.Type)),
		logger.Uint64("chain_id", event.ChainID),
	)
	if err := w.handler.HandleWalletEvent(ctx, event); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("handle %s event %s: %w", event.Type, event.ID, err)
	}
	return nil
}
