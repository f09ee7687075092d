package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/smoothie-kiosk/internal/catalog"
	"github.com/fairyhunter13/smoothie-kiosk/internal/config"
	httpapi "github.com/fairyhunter13/smoothie-kiosk/internal/http"
	"github.com/fairyhunter13/smoothie-kiosk/internal/kiosk"
	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
	"github.com/fairyhunter13/smoothie-kiosk/internal/obs"
)

type ackResp struct {
	Status   string `json:"status"`
	Sequence uint64 `json:"sequence"`
}

type resultResp struct {
	Sequence uint64          `json:"sequence"`
	Status   string          `json:"status"`
	Price    decimal.Decimal `json:"price"`
}

func ampleMenu() catalog.Menu {
	stock := catalog.DefaultStock()
	for ing := range stock {
		stock[ing] = decimal.NewFromInt(100000)
	}
	return catalog.Menu{Catalog: catalog.Default(), Stock: stock}
}

func startKiosk(t testing.TB, menu catalog.Menu) (*httptest.Server, *kiosk.Service, *httpapi.App) {
	t.Helper()
	obs.InitLogger("error")
	svc, err := kiosk.New(menu, kiosk.Options{Logger: obs.Logger})
	if err != nil {
		t.Fatalf("new kiosk: %v", err)
	}
	svc.StartEngine(context.Background())
	app := httpapi.NewApp(config.Config{ResultWait: 3 * time.Second}, svc, obs.Logger)
	srv := httptest.NewServer(httpapi.NewRouter(app))
	t.Cleanup(func() {
		srv.Close()
		svc.StopEngine()
	})
	return srv, svc, app
}

func postOrder(client *http.Client, base, product string) (*http.Response, error) {
	body := []byte(fmt.Sprintf(`{"product_id":%q}`, product))
	r, err := http.NewRequest(http.MethodPost, base+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	return client.Do(r)
}

func TestIntegration_OrderThenResult(t *testing.T) {
	srv, svc, _ := startKiosk(t, catalog.DefaultMenu())
	for i := 0; i < 10; i++ {
		resp, err := postOrder(srv.Client(), srv.URL, "Strawberry Smoothie")
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
	}

	resp, err := srv.Client().Get(srv.URL + "/orders/10?wait=3s")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res resultResp
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Sequence != 10 || res.Status != string(model.StatusFulfilled) {
		t.Fatalf("unexpected result: %+v", res)
	}

	snap := svc.Snapshot()
	if snap.ProductCounts["Strawberry Smoothie"] != 10 || !snap.Revenue.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.Inventory["strawberries"].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("strawberries = %s", snap.Inventory["strawberries"])
	}
}

// Many concurrent POST /orders all get a 202 and every sequence number is
// processed exactly once.
func TestIntegration_HighLoad(t *testing.T) {
	srv, svc, _ := startKiosk(t, ampleMenu())
	concurrency := 20
	perGoroutine := 10
	products := []string{"Strawberry Smoothie", "Mango Smoothie", "Multifruit Smoothie"}
	client := &http.Client{Timeout: 5 * time.Second}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = map[uint64]bool{}
	)
	errCh := make(chan error, concurrency*perGoroutine)
	for g := 0; g < concurrency; g++ {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				resp, err := postOrder(client, srv.URL, products[(gid+i)%len(products)])
				if err != nil {
					errCh <- err
					return
				}
				var ac ackResp
				err = json.NewDecoder(resp.Body).Decode(&ac)
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusAccepted || err != nil {
					errCh <- fmt.Errorf("expected 202, got %d (%v)", resp.StatusCode, err)
					continue
				}
				mu.Lock()
				if seqs[ac.Sequence] {
					errCh <- fmt.Errorf("sequence %d handed out twice", ac.Sequence)
				}
				seqs[ac.Sequence] = true
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	total := concurrency * perGoroutine
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	revenue := decimal.Zero
	for seq := range seqs {
		res, err := svc.AwaitResult(ctx, seq)
		if err != nil {
			t.Fatalf("await %d: %v", seq, err)
		}
		if res.Status != model.StatusFulfilled {
			t.Fatalf("order %d: %s", seq, res.Status)
		}
		revenue = revenue.Add(res.Price)
	}

	snap := svc.Snapshot()
	count := 0
	for _, n := range snap.ProductCounts {
		count += n
	}
	if count != total || len(seqs) != total {
		t.Fatalf("fulfilled %d orders over %d sequences, want %d", count, len(seqs), total)
	}
	if !snap.Revenue.Equal(revenue) {
		t.Fatalf("revenue %s, want %s", snap.Revenue, revenue)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	srv, _, _ := startKiosk(t, catalog.DefaultMenu())

	cases := []struct {
		name, body, ctype string
		want              int
	}{
		{"missing_product_id", `{}`, "application/json", http.StatusBadRequest},
		{"blank_product_id", `{"product_id":"  "}`, "application/json", http.StatusBadRequest},
		{"unknown_field", `{"product_id":"Mango Smoothie","qty":2}`, "application/json", http.StatusBadRequest},
		{"malformed_json", `{"product_id":"e3",`, "application/json", http.StatusBadRequest},
		{"not_on_menu", `{"product_id":"Kale Smoothie"}`, "application/json", http.StatusNotFound},
		{"wrong_media_type", `{"product_id":"Mango Smoothie"}`, "text/plain", http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders", bytes.NewBufferString(tc.body))
			r.Header.Set("Content-Type", tc.ctype)
			resp, err := srv.Client().Do(r)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
			}
		})
	}
}

// After StartShutdown new orders are refused while queued ones still finish.
func TestIntegration_GracefulShutdown(t *testing.T) {
	srv, svc, app := startKiosk(t, ampleMenu())
	for i := 0; i < 20; i++ {
		resp, err := postOrder(srv.Client(), srv.URL, "Mango Smoothie")
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
	}

	app.StartShutdown()
	resp, err := postOrder(srv.Client(), srv.URL, "Mango Smoothie")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !svc.Shutdown(ctx) {
		t.Fatalf("drain timeout")
	}
	if n := svc.Snapshot().ProductCounts["Mango Smoothie"]; n != 20 {
		t.Fatalf("fulfilled %d, want 20", n)
	}
}

func BenchmarkPostOrders(b *testing.B) {
	srv, _, _ := startKiosk(b, ampleMenu())
	client := srv.Client()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp, err := postOrder(client, srv.URL, "Strawberry Smoothie")
			if err == nil {
				_ = resp.Body.Close()
			}
		}
	})
}
