package engine

import (
	"context"
	"sync"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// ResultHub retains every published result and wakes anyone awaiting it.
type ResultHub struct {
	mu      sync.Mutex
	results map[uint64]model.OrderResult
	waiters map[uint64]chan struct{}
	subs    map[int]func(model.OrderResult)
	nextSub int
}

func NewResultHub() *ResultHub {
	return &ResultHub{
		results: make(map[uint64]model.OrderResult),
		waiters: make(map[uint64]chan struct{}),
		subs:    make(map[int]func(model.OrderResult)),
	}
}

// Publish stores res and notifies waiters and subscribers. A sequence is
// published at most once; later publications are ignored.
func (h *ResultHub) Publish(res model.OrderResult) bool {
	h.mu.Lock()
	if _, dup := h.results[res.Sequence]; dup {
		h.mu.Unlock()
		return false
	}
	h.results[res.Sequence] = res
	if ch, ok := h.waiters[res.Sequence]; ok {
		close(ch)
		delete(h.waiters, res.Sequence)
	}
	subs := make([]func(model.OrderResult), 0, len(h.subs))
	for i := 0; i < h.nextSub; i++ {
		if fn, ok := h.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(res)
	}
	return true
}

// Get returns the result for seq if it has been published.
func (h *ResultHub) Get(seq uint64) (model.OrderResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.results[seq]
	return r, ok
}

// Await blocks until the result for seq is published or ctx is done.
func (h *ResultHub) Await(ctx context.Context, seq uint64) (model.OrderResult, error) {
	h.mu.Lock()
	if r, ok := h.results[seq]; ok {
		h.mu.Unlock()
		return r, nil
	}
	ch, ok := h.waiters[seq]
	if !ok {
		ch = make(chan struct{})
		h.waiters[seq] = ch
	}
	h.mu.Unlock()

	select {
	case <-ch:
		r, _ := h.Get(seq)
		return r, nil
	case <-ctx.Done():
		return model.OrderResult{}, ctx.Err()
	}
}

// Subscribe registers fn for every subsequent result, in publication order.
// fn runs on the publishing goroutine and must not block. The returned func
// removes the subscription.
func (h *ResultHub) Subscribe(fn func(model.OrderResult)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
