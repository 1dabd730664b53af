package handlers

import (
	"github.com/google/uuid"
	"github.com/maximhq/pushbq/transports/pushbq-http/lib"
	"github.com/valyala/fasthttp"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// PushBQHTTPMiddleware is a middleware function for the PushBQ HTTP transport
type PushBQHTTPMiddleware func(ctx *fasthttp.RequestCtx)

// RequestIDMiddleware reuses the caller's X-Request-ID or generates one, and
// echoes it on the response.
func RequestIDMiddleware(ctx *fasthttp.RequestCtx) {
	requestID := string(ctx.Request.Header.Peek(RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.SetUserValue(lib.RequestIDUserValue, requestID)
	ctx.Response.Header.Set(RequestIDHeader, requestID)
}

// ChainMiddlewares chains multiple middlewares together
func ChainMiddlewares(handler fasthttp.RequestHandler, middlewares ...PushBQHTTPMiddleware) fasthttp.RequestHandler {
	// If no middlewares, return the original handler
	if len(middlewares) == 0 {
		return handler
	}
	return func(ctx *fasthttp.RequestCtx) {
		for _, middleware := range middlewares {
			middleware(ctx)
			// A middleware that wrote a status has answered the request
			if ctx.Response.StatusCode() != fasthttp.StatusOK || len(ctx.Response.Body()) > 0 {
				return
			}
		}
		handler(ctx)
	}
}
