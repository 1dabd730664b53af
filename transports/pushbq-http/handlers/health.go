package handlers

import (
	"github.com/fasthttp/router"
	"github.com/maximhq/pushbq"
	"github.com/valyala/fasthttp"
)

const (
	GreetingMessage = "Hey, have a message to forward to BigQuery?"
	// SetupMessage acknowledges POST /setup. Tables are created out of band;
	// the route only answers so existing callers keep working.
	SetupMessage = "Setup BigQuery table"
)

// MetricsSource is implemented by the gateway
type MetricsSource interface {
	GetMetrics() pushbq.RequestMetrics
	ProjectID() string
}

// HealthHandler serves liveness endpoints
type HealthHandler struct {
	source MetricsSource
}

// NewHealthHandler creates a new health handler instance
func NewHealthHandler(source MetricsSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// RegisterRoutes registers the health routes
func (h *HealthHandler) RegisterRoutes(r *router.Router) {
	r.GET("/", h.Greeting)
	r.GET("/health", h.GetHealth)
	r.POST("/setup", h.Setup)
}

// Greeting handles GET /
func (h *HealthHandler) Greeting(ctx *fasthttp.RequestCtx) {
	SendText(ctx, fasthttp.StatusOK, GreetingMessage)
}

// Setup handles POST /setup
func (h *HealthHandler) Setup(ctx *fasthttp.RequestCtx) {
	SendText(ctx, fasthttp.StatusOK, SetupMessage)
}

// GetHealth handles GET /health - reports the gateway counters
func (h *HealthHandler) GetHealth(ctx *fasthttp.RequestCtx) {
	SendJSON(ctx, map[string]interface{}{
		"status":     "ok",
		"project_id": h.source.ProjectID(),
		"metrics":    h.source.GetMetrics(),
	})
}
