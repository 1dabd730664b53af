// Package lib provides configuration, context propagation and connectivity
// helpers for the PushBQ HTTP service.
package lib

import (
	"context"

	"github.com/valyala/fasthttp"
)

type contextKey string

// RequestIDContextKey carries the inbound request id through a forward
const RequestIDContextKey contextKey = "pushbq-request-id"

// RequestIDUserValue is the fasthttp user value the request id middleware sets
const RequestIDUserValue = "request_id"

// ConvertToPushBQContext builds the context a forward runs under.
//
// The context is detached from the fasthttp connection: a client hanging up
// does not cancel an insert that is already on its way downstream. The
// outbound call is bounded by the forwarder timeout instead.
func ConvertToPushBQContext(ctx *fasthttp.RequestCtx) context.Context {
	pushbqCtx := context.Background()
	if requestID, ok := ctx.UserValue(RequestIDUserValue).(string); ok && requestID != "" {
		pushbqCtx = context.WithValue(pushbqCtx, RequestIDContextKey, requestID)
	}
	return pushbqCtx
}

// RequestIDFromContext returns the request id stored by ConvertToPushBQContext
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(RequestIDContextKey).(string)
	return requestID
}
