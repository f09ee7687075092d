package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fairyhunter13/smoothie-kiosk/internal/config"
	httpopenapi "github.com/fairyhunter13/smoothie-kiosk/internal/http/openapi"
	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
	"github.com/fairyhunter13/smoothie-kiosk/internal/queue"
)

// Kiosk is the service surface the handlers depend on.
type Kiosk interface {
	SubmitOrder(ctx context.Context, productID string) (uint64, error)
	AwaitResult(ctx context.Context, seq uint64) (model.OrderResult, error)
	Result(seq uint64) (model.OrderResult, bool, error)
	Snapshot() model.Snapshot
	Menu() []model.Product
	EngineRunning() bool
	QueueMetrics() (enqueued, processed uint64, depth int)
	CloseIntake()
}

type App struct {
	Cfg     config.Config
	Kiosk   Kiosk
	logger  *zap.Logger
	closing atomic.Bool
	started time.Time
}

type orderRequest struct {
	ProductID string `json:"product_id"`
}

type ack struct {
	Status     string `json:"status"`
	RequestID  string `json:"request_id"`
	Sequence   uint64 `json:"sequence"`
	ProductID  string `json:"product_id"`
	ReceivedAt string `json:"received_at"`
	QueueDepth int    `json:"queue_depth"`
}

type resultView struct {
	model.OrderResult
	Message string `json:"message"`
}

type pendingView struct {
	Status   string `json:"status"`
	Sequence uint64 `json:"sequence"`
}

func NewApp(cfg config.Config, k Kiosk, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{Cfg: cfg, Kiosk: k, logger: logger, started: time.Now()}
}

// StartShutdown refuses new orders; queued ones are still fulfilled.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Kiosk.CloseIntake()
}

func (a *App) menuHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": a.Kiosk.Menu()})
}

func (a *App) postOrderHandler(c *gin.Context) {
	if a.closing.Load() {
		WriteJSONError(c, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	ct := c.GetHeader("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req orderRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(c, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		WriteJSONError(c, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}

	// a bounded queue may make Submit wait for room
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.Cfg.ResultWait)
	defer cancel()
	seq, err := a.Kiosk.SubmitOrder(ctx, req.ProductID)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrEngineNotRunning):
		WriteJSONError(c, http.StatusServiceUnavailable, "engine_not_running", "")
		return
	case errors.Is(err, model.ErrUnknownProduct):
		WriteJSONError(c, http.StatusNotFound, "unknown_product", err.Error())
		return
	case errors.Is(err, queue.ErrIntakeClosed):
		WriteJSONError(c, http.StatusServiceUnavailable, "shutting_down", "")
		return
	case errors.Is(err, context.DeadlineExceeded):
		WriteJSONError(c, http.StatusServiceUnavailable, "queue_full", "")
		return
	default:
		a.logger.Error("order_submit_error", zap.Error(err))
		WriteJSONError(c, http.StatusInternalServerError, "internal_error", "")
		return
	}

	_, _, depth := a.Kiosk.QueueMetrics()
	ac := ack{
		Status:     "accepted",
		RequestID:  RequestIDFromContext(c.Request.Context()),
		Sequence:   seq,
		ProductID:  req.ProductID,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		QueueDepth: depth,
	}
	c.JSON(http.StatusAccepted, ac)
	a.logger.Info("order_accepted",
		zap.String("request_id", ac.RequestID),
		zap.Uint64("sequence", ac.Sequence),
		zap.String("product_id", ac.ProductID),
		zap.Int("queue_depth", ac.QueueDepth),
	)
}

func (a *App) getOrderHandler(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil || seq == 0 {
		WriteJSONError(c, http.StatusBadRequest, "invalid_sequence", "sequence must be a positive integer")
		return
	}
	wait, err := a.waitParam(c.Query("wait"))
	if err != nil {
		WriteJSONError(c, http.StatusBadRequest, "invalid_wait", err.Error())
		return
	}

	var res model.OrderResult
	if wait == 0 {
		var done bool
		res, done, err = a.Kiosk.Result(seq)
		if err == nil && !done {
			c.JSON(http.StatusAccepted, pendingView{Status: "pending", Sequence: seq})
			return
		}
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		res, err = a.Kiosk.AwaitResult(ctx, seq)
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resultView{OrderResult: res, Message: res.Message()})
	case errors.Is(err, model.ErrUnknownSequence):
		WriteJSONError(c, http.StatusNotFound, "unknown_sequence", "")
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, pendingView{Status: "pending", Sequence: seq})
	default:
		WriteJSONError(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	}
}

// waitParam parses ?wait= as a Go duration or whole milliseconds, capped at
// the configured maximum.
func (a *App) waitParam(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		ms, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, err
		}
		d = time.Duration(ms) * time.Millisecond
	}
	if d < 0 {
		return 0, errors.New("wait must be >= 0")
	}
	if d > a.Cfg.ResultWait {
		d = a.Cfg.ResultWait
	}
	return d, nil
}

func (a *App) snapshotHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.Kiosk.Snapshot())
}

func (a *App) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine_running": a.Kiosk.EngineRunning()})
}

func (a *App) metricsHandler(c *gin.Context) {
	enq, proc, depth := a.Kiosk.QueueMetrics()
	snap := a.Kiosk.Snapshot()
	fulfilled := 0
	for _, n := range snap.ProductCounts {
		fulfilled += n
	}
	c.JSON(http.StatusOK, gin.H{
		"orders_enqueued":  enq,
		"orders_processed": proc,
		"orders_fulfilled": fulfilled,
		"queue_depth":      depth,
		"revenue":          snap.Revenue.StringFixed(2),
		"engine_running":   a.Kiosk.EngineRunning(),
		"uptime_sec":       time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", httpopenapi.YAML)
}

func (a *App) docsHandler(c *gin.Context) {
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Smoothie Kiosk API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
