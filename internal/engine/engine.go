// Package engine implements the fulfillment engine: a single worker that
// drains the order queue against the inventory ledger and ledger totals.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
	"github.com/fairyhunter13/smoothie-kiosk/internal/queue"
	"github.com/fairyhunter13/smoothie-kiosk/internal/store"
)

// Catalog resolves product identifiers.
type Catalog interface {
	Lookup(productID string) (model.Product, error)
}

// Engine processes one order at a time, in submission order.
type Engine struct {
	catalog Catalog
	inv     *store.Inventory
	totals  *store.Totals
	q       *queue.Queue
	results *ResultHub
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	life    sync.Mutex // serializes Start and Stop
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithResultHub shares an existing hub with the engine.
func WithResultHub(h *ResultHub) Option {
	return func(e *Engine) { e.results = h }
}

// New constructs an Engine over the given catalog, ledger, totals and queue.
func New(c Catalog, inv *store.Inventory, totals *store.Totals, q *queue.Queue, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		inv:     inv,
		totals:  totals,
		q:       q,
		results: NewResultHub(),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("github.com/fairyhunter13/smoothie-kiosk/internal/engine"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the worker. Calling Start on a running engine is a no-op.
// The worker also stops when parent is cancelled.
func (e *Engine) Start(parent context.Context) {
	e.life.Lock()
	defer e.life.Unlock()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	prev := e.done
	e.mu.Unlock()
	if prev != nil {
		// a worker that exited on its own may still be closing down
		<-prev
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.running = true
	e.mu.Unlock()
	go e.worker(ctx, done)
	e.logger.Info("engine_started", zap.Int("backlog", e.q.Len()))
}

// Stop asks the worker to finish the order in hand and exit, and waits for
// it. Requests still queued stay queued.
func (e *Engine) Stop() {
	e.life.Lock()
	defer e.life.Unlock()

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()
	e.logger.Info("engine_stopped", zap.Int("backlog", e.q.Len()))
}

// Running reports whether the worker is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Results exposes the result hub.
func (e *Engine) Results() *ResultHub { return e.results }

// worker drains the queue until ctx is cancelled. A request already taken is
// processed to completion regardless of cancellation.
func (e *Engine) worker(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.done == done {
			e.running = false
		}
		e.mu.Unlock()
		close(done)
	}()
	for {
		if ctx.Err() != nil {
			return
		}
		req, err := e.q.TakeNext(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				e.logger.Error("engine_take_next_error", zap.Error(err))
			}
			return
		}
		res := e.Process(context.WithoutCancel(ctx), req)
		e.results.Publish(res)
		e.q.MarkProcessed()
	}
}

// Process runs one request through lookup, reservation and ledger credit.
func (e *Engine) Process(ctx context.Context, req model.OrderRequest) model.OrderResult {
	_, span := e.tracer.Start(ctx, "order.fulfill", trace.WithAttributes(
		attribute.Int64("order.sequence", int64(req.Sequence)),
		attribute.String("order.product_id", req.ProductID),
	))
	defer span.End()

	res := model.OrderResult{Sequence: req.Sequence, ProductID: req.ProductID}
	defer func() {
		span.SetAttributes(attribute.String("order.status", string(res.Status)))
	}()

	product, err := e.catalog.Lookup(req.ProductID)
	if err != nil {
		res.Status = model.StatusRejectedUnknownProduct
		res.CompletedAt = e.now().UTC()
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("order_rejected",
			zap.Uint64("sequence", req.Sequence),
			zap.String("product_id", req.ProductID),
			zap.String("status", string(res.Status)))
		return res
	}
	res.ProductID = product.Name

	if err := e.inv.TryReserve(product.Recipe); err != nil {
		res.Status = model.StatusRejectedInsufficientStock
		var ise *store.InsufficientStockError
		if errors.As(err, &ise) {
			res.Missing = ise.Missing
		}
		res.CompletedAt = e.now().UTC()
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("order_rejected",
			zap.Uint64("sequence", req.Sequence),
			zap.String("product_id", product.Name),
			zap.String("status", string(res.Status)),
			zap.Strings("missing", res.Missing),
			zap.Error(err))
		return res
	}

	e.totals.Record(product.Name, product.Price)
	res.Status = model.StatusFulfilled
	res.Price = product.Price
	res.CompletedAt = e.now().UTC()
	span.SetStatus(codes.Ok, "")
	e.logger.Info("order_fulfilled",
		zap.Uint64("sequence", req.Sequence),
		zap.String("product_id", product.Name),
		zap.String("price", product.Price.String()),
		zap.Duration("wait", res.CompletedAt.Sub(req.SubmittedAt)))
	return res
}

// Snapshot returns current stock and ledger totals.
func (e *Engine) Snapshot() model.Snapshot {
	counts, revenue := e.totals.Snapshot()
	return model.Snapshot{
		Inventory:     e.inv.Snapshot(),
		Revenue:       revenue,
		ProductCounts: counts,
	}
}

// DrainUntil blocks until every enqueued order has been processed or ctx is
// done.
func (e *Engine) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, depth := e.q.Metrics()
		if depth == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
