// Package client is a resty-backed client for the kiosk HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Product is a menu entry.
type Product struct {
	Name   string                     `json:"name"`
	Price  decimal.Decimal            `json:"price"`
	Recipe map[string]decimal.Decimal `json:"recipe"`
}

// Ack confirms that an order was queued.
type Ack struct {
	Status     string `json:"status"`
	RequestID  string `json:"request_id"`
	Sequence   uint64 `json:"sequence"`
	ProductID  string `json:"product_id"`
	ReceivedAt string `json:"received_at"`
	QueueDepth int    `json:"queue_depth"`
}

// Result is the outcome of a processed order. Status is "pending" while the
// order is still queued.
type Result struct {
	Sequence    uint64          `json:"sequence"`
	ProductID   string          `json:"product_id"`
	Status      string          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Missing     []string        `json:"missing,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
	Message     string          `json:"message"`
}

// Pending reports whether the order had not been processed yet.
func (r Result) Pending() bool { return r.Status == "pending" }

// Snapshot mirrors GET /snapshot.
type Snapshot struct {
	Inventory     map[string]decimal.Decimal `json:"inventory"`
	Revenue       decimal.Decimal            `json:"revenue"`
	ProductCounts map[string]int             `json:"product_counts"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("kiosk api error: status=%d, code=%s, details=%s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("kiosk api error: status=%d, code=%s", e.StatusCode, e.Code)
}

// IsCode reports whether err is an APIError with the given error code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to a running kiosk.
type Client struct {
	httpClient *resty.Client
}

// New builds a client for the kiosk listening at baseURL. A bare ":8080"
// style address is expanded to http://localhost:8080.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(normalize(baseURL)).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &Client{httpClient: c}
}

func normalize(addr string) string {
	addr = strings.TrimSuffix(addr, "/")
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	if !strings.Contains(addr, "://") {
		return "http://" + addr
	}
	return addr
}

func (c *Client) do(req *resty.Request, method, path string) (*resty.Response, error) {
	apiErr := new(APIError)
	resp, err := req.SetError(apiErr).Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr.StatusCode = resp.StatusCode()
		return nil, apiErr
	}
	return resp, nil
}

// Menu lists the products on offer.
func (c *Client) Menu(ctx context.Context) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if _, err := c.do(c.httpClient.R().SetContext(ctx).SetResult(&out), http.MethodGet, "/menu"); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// SubmitOrder queues an order for productID.
func (c *Client) SubmitOrder(ctx context.Context, productID string) (*Ack, error) {
	ack := new(Ack)
	req := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"product_id": productID}).
		SetResult(ack)
	if _, err := c.do(req, http.MethodPost, "/orders"); err != nil {
		return nil, err
	}
	return ack, nil
}

// Result fetches the result of order seq, waiting up to wait on the server
// side. A still-queued order yields a Result with Pending() true.
func (c *Client) Result(ctx context.Context, seq uint64, wait time.Duration) (*Result, error) {
	res := new(Result)
	req := c.httpClient.R().SetContext(ctx).SetResult(res)
	if wait > 0 {
		req.SetQueryParam("wait", wait.String())
	}
	if _, err := c.do(req, http.MethodGet, "/orders/"+strconv.FormatUint(seq, 10)); err != nil {
		return nil, err
	}
	return res, nil
}

// Snapshot fetches current stock and ledger totals.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := new(Snapshot)
	if _, err := c.do(c.httpClient.R().SetContext(ctx).SetResult(snap), http.MethodGet, "/snapshot"); err != nil {
		return nil, err
	}
	return snap, nil
}
