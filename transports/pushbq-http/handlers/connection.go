package handlers

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/maximhq/pushbq/transports/pushbq-http/lib"
	"github.com/valyala/fasthttp"
)

// ConnectionResponse is the body of GET /connection/{host}/{port}
type ConnectionResponse struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Reachable bool   `json:"reachable"`
}

// ConnectionHandler answers whether an emulator endpoint accepts TCP connections
type ConnectionHandler struct {
	timeout time.Duration
	check   func(host string, port int, timeout time.Duration) bool
}

// NewConnectionHandler creates a new connection handler instance
func NewConnectionHandler(timeout time.Duration) *ConnectionHandler {
	return &ConnectionHandler{
		timeout: timeout,
		check:   lib.CheckConnection,
	}
}

// RegisterRoutes registers the connection check route
func (h *ConnectionHandler) RegisterRoutes(r *router.Router) {
	r.GET("/connection/{host}/{port}", h.CheckConnection)
}

// CheckConnection handles GET /connection/{host}/{port}
func (h *ConnectionHandler) CheckConnection(ctx *fasthttp.RequestCtx) {
	host, _ := ctx.UserValue("host").(string)
	portParam, _ := ctx.UserValue("port").(string)

	port, err := strconv.Atoi(portParam)
	if err != nil || port <= 0 || port > 65535 {
		SendError(ctx, fasthttp.StatusBadRequest, "port must be an integer between 1 and 65535")
		return
	}
	if host == "" {
		SendError(ctx, fasthttp.StatusBadRequest, "host is required")
		return
	}

	SendJSON(ctx, ConnectionResponse{
		Host:      host,
		Port:      port,
		Reachable: h.check(host, port, h.timeout),
	})
}
