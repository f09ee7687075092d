// Package queue implements the in-memory FIFO of submitted orders.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// ErrIntakeClosed is returned by Submit after CloseIntake.
var ErrIntakeClosed = errors.New("order intake is closed")

// Queue is a FIFO of order requests. Sequence numbers are assigned under the
// same lock that appends, so dequeue order always matches sequence order.
type Queue struct {
	mu       sync.Mutex
	backlog  []model.OrderRequest
	capacity int
	seq      atomic.Uint64 // last sequence handed out; the first is 1

	// ready and space are 1-buffered wake-up signals; waiters re-check state
	// under mu after every wake.
	ready chan struct{}
	space chan struct{}

	shuttingDown atomic.Bool
	enqueued     atomic.Uint64
	processed    atomic.Uint64

	now func() time.Time
}

// New creates a Queue. capacity <= 0 means unlimited.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		now:      time.Now,
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Submit appends a request for productID and returns its sequence number.
// A bounded queue waits for room until ctx is done.
func (q *Queue) Submit(ctx context.Context, productID string) (uint64, error) {
	for {
		if q.shuttingDown.Load() {
			// pass the wake-up on to the next blocked producer
			signal(q.space)
			return 0, ErrIntakeClosed
		}
		q.mu.Lock()
		if q.capacity == 0 || len(q.backlog) < q.capacity {
			seq := q.seq.Add(1)
			q.backlog = append(q.backlog, model.OrderRequest{
				Sequence:    seq,
				ProductID:   productID,
				SubmittedAt: q.now().UTC(),
			})
			q.enqueued.Add(1)
			// another producer may be waiting for the room that is left
			if q.capacity > 0 && len(q.backlog) < q.capacity {
				signal(q.space)
			}
			q.mu.Unlock()
			signal(q.ready)
			return seq, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-q.space:
		}
	}
}

// TakeNext removes and returns the oldest request, blocking while the queue
// is empty until an item arrives or ctx is done.
func (q *Queue) TakeNext(ctx context.Context) (model.OrderRequest, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.OrderRequest{}, err
		}
		q.mu.Lock()
		if len(q.backlog) > 0 {
			req := q.backlog[0]
			q.backlog[0] = model.OrderRequest{}
			q.backlog = q.backlog[1:]
			if len(q.backlog) > 0 {
				signal(q.ready)
			}
			q.mu.Unlock()
			signal(q.space)
			return req, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return model.OrderRequest{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of requests waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Capacity returns the configured bound, 0 meaning unlimited.
func (q *Queue) Capacity() int { return q.capacity }

// LastSequence returns the highest sequence number handed out.
func (q *Queue) LastSequence() uint64 { return q.seq.Load() }

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Metrics returns counters and depth for observability.
func (q *Queue) Metrics() (enq, proc uint64, depth int) {
	return q.enqueued.Load(), q.processed.Load(), q.Len()
}

// CloseIntake disallows future submissions. Queued requests stay available
// to TakeNext.
func (q *Queue) CloseIntake() {
	q.shuttingDown.Store(true)
	signal(q.space)
}

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
