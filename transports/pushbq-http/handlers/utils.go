// Package handlers provides HTTP request handlers for the PushBQ HTTP transport.
package handlers

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/maximhq/pushbq/interfaces"
	"github.com/valyala/fasthttp"
)

var logger interfaces.Logger

// SetLogger sets the logger used by the handlers
func SetLogger(l interfaces.Logger) {
	logger = l
}

// SendJSON sends a JSON response with 200 OK status
func SendJSON(ctx *fasthttp.RequestCtx, data interface{}) {
	SendJSONWithStatus(ctx, data, fasthttp.StatusOK)
}

// SendJSONWithStatus sends a JSON response with the given status
func SendJSONWithStatus(ctx *fasthttp.RequestCtx, data interface{}, statusCode int) {
	body, err := sonic.Marshal(data)
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("failed to encode JSON response: %v", err))
		}
		SendText(ctx, fasthttp.StatusInternalServerError, "failed to encode response")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(statusCode)
	ctx.SetBody(body)
}

// SendText sends a plain text response
func SendText(ctx *fasthttp.RequestCtx, statusCode int, text string) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetStatusCode(statusCode)
	ctx.SetBodyString(text)
}

// SendError sends a plain text error response and logs it at warn level
func SendError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	if logger != nil {
		logger.Warn(fmt.Sprintf("%s %s -> %d: %s", ctx.Method(), ctx.Path(), statusCode, message))
	}
	SendText(ctx, statusCode, message)
}
