package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/fairyhunter13/smoothie-kiosk/internal/catalog"
	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
	"github.com/fairyhunter13/smoothie-kiosk/internal/queue"
	"github.com/fairyhunter13/smoothie-kiosk/internal/store"
)

func strawberryStock() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"strawberries": decimal.NewFromInt(5),
		"bananas":      decimal.NewFromInt(1),
		"greek yogurt": decimal.NewFromInt(1),
		"ice":          decimal.NewFromInt(1),
	}
}

type fixture struct {
	eng    *Engine
	q      *queue.Queue
	inv    *store.Inventory
	totals *store.Totals
}

func newFixture(t *testing.T, stock map[string]decimal.Decimal) fixture {
	t.Helper()
	inv, err := store.NewInventory(stock)
	require.NoError(t, err)
	q := queue.New(0)
	totals := store.NewTotals()
	return fixture{eng: New(catalog.Default(), inv, totals, q), q: q, inv: inv, totals: totals}
}

func (f fixture) submit(t *testing.T, productID string) uint64 {
	t.Helper()
	seq, err := f.q.Submit(context.Background(), productID)
	require.NoError(t, err)
	return seq
}

func (f fixture) await(t *testing.T, seq uint64) model.OrderResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.eng.Results().Await(ctx, seq)
	require.NoError(t, err)
	return res
}

func TestEngineFulfillsOrderConsumingExactStock(t *testing.T) {
	f := newFixture(t, strawberryStock())
	f.eng.Start(context.Background())
	defer f.eng.Stop()

	res := f.await(t, f.submit(t, "Strawberry Smoothie"))
	assert.Equal(t, model.StatusFulfilled, res.Status)
	assert.Equal(t, "5", res.Price.String())
	assert.Equal(t, "Strawberry Smoothie", res.ProductID)

	snap := f.eng.Snapshot()
	assert.Equal(t, "5", snap.Revenue.String())
	assert.Equal(t, 1, snap.ProductCounts["Strawberry Smoothie"])
	for ing, q := range snap.Inventory {
		assert.True(t, q.IsZero(), "%s should be exhausted, got %s", ing, q)
	}
}

func TestEngineRejectsSecondOrderWhenStockRunsOut(t *testing.T) {
	f := newFixture(t, strawberryStock())
	first := f.submit(t, "Strawberry Smoothie")
	second := f.submit(t, "Strawberry Smoothie")
	f.eng.Start(context.Background())
	defer f.eng.Stop()

	r1 := f.await(t, first)
	r2 := f.await(t, second)
	assert.Equal(t, model.StatusFulfilled, r1.Status)
	assert.Equal(t, model.StatusRejectedInsufficientStock, r2.Status)
	assert.Contains(t, r2.Missing, "bananas")
	assert.True(t, r2.Price.IsZero())

	snap := f.eng.Snapshot()
	assert.Equal(t, "5", snap.Revenue.String())
	assert.Equal(t, 1, snap.ProductCounts["Strawberry Smoothie"])
	assert.True(t, snap.Inventory["bananas"].IsZero())
}

func TestEngineRejectsUnknownProductFromQueue(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	f.eng.Start(context.Background())
	defer f.eng.Stop()

	before := f.eng.Snapshot()
	res := f.await(t, f.submit(t, "Kale Smoothie"))
	assert.Equal(t, model.StatusRejectedUnknownProduct, res.Status)
	assert.Equal(t, "Sorry, that item is not on the menu.", res.Message())
	assert.Equal(t, before, f.eng.Snapshot())
}

func TestEngineStartIsIdempotent(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	f.eng.Start(context.Background())
	f.eng.Start(context.Background())
	assert.True(t, f.eng.Running())

	res := f.await(t, f.submit(t, "mango smoothie"))
	assert.Equal(t, model.StatusFulfilled, res.Status)
	assert.Equal(t, 1, f.eng.Snapshot().ProductCounts["Mango Smoothie"])

	f.eng.Stop()
	f.eng.Stop()
	assert.False(t, f.eng.Running())
}

func TestEngineStopLeavesBacklogQueued(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	f.eng.Start(context.Background())
	f.eng.Stop()

	seq := f.submit(t, "Mango Smoothie")
	time.Sleep(30 * time.Millisecond)
	_, ok := f.eng.Results().Get(seq)
	assert.False(t, ok, "stopped engine must not process")
	assert.Equal(t, 1, f.q.Len())

	f.eng.Start(context.Background())
	defer f.eng.Stop()
	assert.Equal(t, model.StatusFulfilled, f.await(t, seq).Status)
}

func TestEngineStopsWhenParentContextCancelled(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	ctx, cancel := context.WithCancel(context.Background())
	f.eng.Start(ctx)
	cancel()
	assert.Eventually(t, func() bool { return !f.eng.Running() }, time.Second, 5*time.Millisecond)

	// Stop still returns once the worker has observed cancellation.
	done := make(chan struct{})
	go func() {
		f.eng.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	f.eng.Start(context.Background())
	defer f.eng.Stop()
	assert.Equal(t, model.StatusFulfilled, f.await(t, f.submit(t, "Mango Smoothie")).Status)
}

func TestEngineResultsPublishedInSequenceOrder(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	var mu sync.Mutex
	var seen []uint64
	unsubscribe := f.eng.Results().Subscribe(func(r model.OrderResult) {
		mu.Lock()
		seen = append(seen, r.Sequence)
		mu.Unlock()
	})
	defer unsubscribe()

	var last uint64
	for i := 0; i < 20; i++ {
		last = f.submit(t, []string{"Mango Smoothie", "Strawberry Smoothie", "Multifruit Smoothie"}[i%3])
	}
	f.eng.Start(context.Background())
	defer f.eng.Stop()
	f.await(t, last)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 20)
	for i, s := range seen {
		assert.Equal(t, uint64(i+1), s)
	}
}

func TestEngineDrainUntil(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	for i := 0; i < 10; i++ {
		f.submit(t, "Strawberry Smoothie")
	}

	short, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	assert.False(t, f.eng.DrainUntil(short), "nothing drains while stopped")

	f.eng.Start(context.Background())
	defer f.eng.Stop()
	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.True(t, f.eng.DrainUntil(ctx))
	assert.Equal(t, 10, f.eng.Snapshot().ProductCounts["Strawberry Smoothie"])
	assert.Equal(t, "50", f.eng.Snapshot().Revenue.String())
}

func TestEngineMultifruitUsesFractionalMango(t *testing.T) {
	f := newFixture(t, catalog.DefaultStock())
	res := f.eng.Process(context.Background(), model.OrderRequest{Sequence: 1, ProductID: "Multifruit Smoothie"})
	assert.Equal(t, model.StatusFulfilled, res.Status)
	assert.Equal(t, "9.5", f.inv.Get("mango").String())
	assert.Equal(t, "290", f.inv.Get("blueberries").String())
}

// Stock never goes negative and revenue always equals the sum of fulfilled
// prices, whatever the order mix.
func TestEngineLedgerProperty(t *testing.T) {
	menu := catalog.Default()
	ingredients := []string{"strawberries", "bananas", "orange juice", "mango", "blueberries", "ice", "greek yogurt"}
	rapid.Check(t, func(t *rapid.T) {
		stock := map[string]decimal.Decimal{}
		for _, ing := range ingredients {
			stock[ing] = decimal.NewFromInt(int64(rapid.IntRange(0, 12).Draw(t, ing)))
		}
		inv, err := store.NewInventory(stock)
		if err != nil {
			t.Fatal(err)
		}
		totals := store.NewTotals()
		eng := New(menu, inv, totals, queue.New(0))

		orders := rapid.SliceOfN(rapid.SampledFrom([]string{
			"Strawberry Smoothie", "Mango Smoothie", "Multifruit Smoothie", "Kale Smoothie",
		}), 0, 30).Draw(t, "orders")

		expected := decimal.Zero
		fulfilled := 0
		for i, p := range orders {
			res := eng.Process(context.Background(), model.OrderRequest{Sequence: uint64(i + 1), ProductID: p})
			if res.Status == model.StatusFulfilled {
				expected = expected.Add(res.Price)
				fulfilled++
			} else if !res.Price.IsZero() {
				t.Fatalf("rejected order carries price %s", res.Price)
			}
		}
		snap := eng.Snapshot()
		for ing, q := range snap.Inventory {
			if q.IsNegative() {
				t.Fatalf("%s went negative: %s", ing, q)
			}
		}
		if !snap.Revenue.Equal(expected) {
			t.Fatalf("revenue %s, want %s", snap.Revenue, expected)
		}
		total := 0
		for _, c := range snap.ProductCounts {
			total += c
		}
		if total != fulfilled {
			t.Fatalf("counts sum %d, want %d", total, fulfilled)
		}
	})
}

func TestEngineRecordsOrderSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	inv, err := store.NewInventory(strawberryStock())
	require.NoError(t, err)
	eng := New(catalog.Default(), inv, store.NewTotals(), queue.New(0), WithTracer(tp.Tracer("test")))

	eng.Process(context.Background(), model.OrderRequest{Sequence: 1, ProductID: "Strawberry Smoothie"})
	eng.Process(context.Background(), model.OrderRequest{Sequence: 2, ProductID: "Strawberry Smoothie"})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	status := func(s sdktrace.ReadOnlySpan) string {
		for _, kv := range s.Attributes() {
			if kv.Key == "order.status" {
				return kv.Value.AsString()
			}
		}
		return ""
	}
	assert.Equal(t, "order.fulfill", spans[0].Name())
	assert.Equal(t, string(model.StatusFulfilled), status(spans[0]))
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, string(model.StatusRejectedInsufficientStock), status(spans[1]))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
