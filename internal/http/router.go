package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(WithRequestID())
	r.Use(WithLogging(app.logger))

	r.GET("/menu", app.menuHandler)
	r.POST("/orders", app.postOrderHandler)
	r.GET("/orders/:seq", app.getOrderHandler)
	r.GET("/snapshot", app.snapshotHandler)
	r.GET("/healthz", app.healthHandler)
	r.GET("/debug/metrics", app.metricsHandler)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	r.GET("/openapi.yaml", app.openapiHandler)
	r.GET("/docs", app.docsHandler)

	r.NoRoute(func(c *gin.Context) {
		WriteJSONError(c, http.StatusNotFound, "not_found", "")
	})
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		WriteJSONError(c, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return r
}
