// Package kiosk is the boundary the outer surfaces (HTTP, CLI) talk to. It
// owns the catalog, ledger, queue and engine and exposes order submission,
// result retrieval, snapshots and lifecycle control.
package kiosk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fairyhunter13/smoothie-kiosk/internal/catalog"
	"github.com/fairyhunter13/smoothie-kiosk/internal/engine"
	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
	"github.com/fairyhunter13/smoothie-kiosk/internal/obs"
	"github.com/fairyhunter13/smoothie-kiosk/internal/queue"
	"github.com/fairyhunter13/smoothie-kiosk/internal/store"
)

// Service wires the kiosk components together.
type Service struct {
	catalog *catalog.Catalog
	queue   *queue.Queue
	engine  *engine.Engine
	logger  *zap.Logger
}

// Options tune a Service.
type Options struct {
	QueueCapacity int
	Logger        *zap.Logger
}

// New builds a Service over the given menu. The engine is not started.
func New(menu catalog.Menu, opts Options) (*Service, error) {
	if menu.Catalog == nil {
		return nil, errors.New("menu has no catalog")
	}
	inv, err := store.NewInventory(menu.Stock)
	if err != nil {
		return nil, fmt.Errorf("seed inventory: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	q := queue.New(opts.QueueCapacity)
	totals := store.NewTotals()
	eng := engine.New(menu.Catalog, inv, totals, q, engine.WithLogger(obs.Named(logger, "engine")))
	return &Service{
		catalog: menu.Catalog,
		queue:   q,
		engine:  eng,
		logger:  logger,
	}, nil
}

// SubmitOrder validates productID and enqueues it, returning the assigned
// sequence number. Unknown products are refused without touching the queue.
func (s *Service) SubmitOrder(ctx context.Context, productID string) (uint64, error) {
	if !s.engine.Running() {
		return 0, model.ErrEngineNotRunning
	}
	product, err := s.catalog.Lookup(productID)
	if err != nil {
		return 0, err
	}
	seq, err := s.queue.Submit(ctx, product.Name)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", product.Name, err)
	}
	s.logger.Debug("order_submitted", zap.Uint64("sequence", seq), zap.String("product_id", product.Name))
	return seq, nil
}

// AwaitResult blocks until the order's result is available or ctx is done.
func (s *Service) AwaitResult(ctx context.Context, seq uint64) (model.OrderResult, error) {
	if seq == 0 || seq > s.queue.LastSequence() {
		return model.OrderResult{}, fmt.Errorf("%w: %d", model.ErrUnknownSequence, seq)
	}
	return s.engine.Results().Await(ctx, seq)
}

// Result returns the result for seq if processing has finished.
func (s *Service) Result(seq uint64) (model.OrderResult, bool, error) {
	if seq == 0 || seq > s.queue.LastSequence() {
		return model.OrderResult{}, false, fmt.Errorf("%w: %d", model.ErrUnknownSequence, seq)
	}
	r, ok := s.engine.Results().Get(seq)
	return r, ok, nil
}

// Subscribe registers fn for every result published from now on.
func (s *Service) Subscribe(fn func(model.OrderResult)) func() {
	return s.engine.Results().Subscribe(fn)
}

// Snapshot returns current stock, revenue and per-product counts.
func (s *Service) Snapshot() model.Snapshot { return s.engine.Snapshot() }

// Menu lists the catalog.
func (s *Service) Menu() []model.Product { return s.catalog.Products() }

// StartEngine starts order processing.
func (s *Service) StartEngine(ctx context.Context) { s.engine.Start(ctx) }

// StopEngine stops order processing. Queued orders wait for the next start.
func (s *Service) StopEngine() { s.engine.Stop() }

// EngineRunning reports whether orders are being processed.
func (s *Service) EngineRunning() bool { return s.engine.Running() }

// QueueMetrics returns enqueued, processed and waiting counts.
func (s *Service) QueueMetrics() (enqueued, processed uint64, depth int) {
	return s.queue.Metrics()
}

// CloseIntake refuses further submissions.
func (s *Service) CloseIntake() { s.queue.CloseIntake() }

// Shutdown closes intake, waits for the backlog to drain and stops the
// engine. It reports whether the drain finished before ctx was done.
func (s *Service) Shutdown(ctx context.Context) bool {
	s.queue.CloseIntake()
	enq, proc, depth := s.queue.Metrics()
	s.logger.Info("shutdown_drain_begin",
		zap.Uint64("enqueued", enq), zap.Uint64("processed", proc), zap.Int("backlog_size", depth))
	var drained bool
	if s.engine.Running() {
		drained = s.engine.DrainUntil(ctx)
	} else {
		drained = depth == 0
	}
	if drained {
		s.logger.Info("shutdown_drain_complete")
	} else {
		s.logger.Warn("shutdown_drain_timeout", zap.Int("backlog_size", s.queue.Len()))
	}
	s.engine.Stop()
	return drained
}
