package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fasthttp/router"
	"github.com/maximhq/pushbq/interfaces"
	"github.com/maximhq/pushbq/transports/pushbq-http/lib"
	"github.com/valyala/fasthttp"
)

const (
	InsertSuccessMessage = "Data inserted successfully"
	InsertFailurePrefix  = "Error inserting data: "
)

var errInsertPath = errors.New("insert path must be /{route}/{destinationBaseUrl}/{datasetId}/{tableId}")

// InsertGateway forwards inserts and records requests rejected before forwarding
type InsertGateway interface {
	interfaces.Forwarder
	Reject(ctx context.Context, req *interfaces.ForwardRequest, reason string) interfaces.InsertOutcome
}

// InsertHandler relays POSTed payloads to the insert API addressed by the path
type InsertHandler struct {
	forwarder         InsertGateway
	legacyStatusCodes bool
}

// NewInsertHandler creates a new insert handler instance
func NewInsertHandler(forwarder InsertGateway, legacyStatusCodes bool) *InsertHandler {
	return &InsertHandler{
		forwarder:         forwarder,
		legacyStatusCodes: legacyStatusCodes,
	}
}

// RegisterRoutes registers the insert routes.
// The catch-all segment lets the destination itself contain slashes.
func (h *InsertHandler) RegisterRoutes(r *router.Router) {
	r.POST("/pushtobq/{coordinates:*}", h.PushToBQ)
	r.POST("/insert/{coordinates:*}", h.PushToBQ)
}

// PushToBQ handles POST /pushtobq/{destinationBaseUrl}/{datasetId}/{tableId}
func (h *InsertHandler) PushToBQ(ctx *fasthttp.RequestCtx) {
	pushbqCtx := lib.ConvertToPushBQContext(ctx)

	req, err := ParseInsertPath(string(ctx.Request.URI().PathOriginal()))
	if err != nil {
		h.sendOutcome(ctx, h.forwarder.Reject(pushbqCtx, &interfaces.ForwardRequest{Payload: ctx.PostBody()}, err.Error()))
		return
	}
	req.Payload = ctx.PostBody()

	h.sendOutcome(ctx, h.forwarder.Forward(pushbqCtx, req))
}

func (h *InsertHandler) sendOutcome(ctx *fasthttp.RequestCtx, outcome interfaces.InsertOutcome) {
	if outcome.IsSuccess() {
		SendText(ctx, fasthttp.StatusOK, InsertSuccessMessage)
		return
	}
	SendError(ctx, h.failureStatus(outcome), InsertFailurePrefix+outcome.Reason)
}

// failureStatus maps a failed outcome to a response status
func (h *InsertHandler) failureStatus(outcome interfaces.InsertOutcome) int {
	if h.legacyStatusCodes {
		return fasthttp.StatusOK
	}
	if outcome.Kind == interfaces.FailureInvalidRequest {
		return fasthttp.StatusBadRequest
	}
	return fasthttp.StatusBadGateway
}

// ParseInsertPath extracts the table coordinates from a raw, un-normalized
// request path. The first segment is the route name, the last two are the
// dataset and table, and everything between is the destination base URL.
// Each part is percent-decoded, so both
//
//	/pushtobq/http%3A%2F%2Flocalhost%3A9050/ds/t
//	/pushtobq/http://localhost:9050/ds/t
//
// address the same table.
func ParseInsertPath(rawPath string) (*interfaces.ForwardRequest, error) {
	trimmed := strings.TrimPrefix(rawPath, "/")
	_, coordinates, found := strings.Cut(trimmed, "/")
	if !found {
		return nil, errInsertPath
	}

	segments := strings.Split(coordinates, "/")
	if len(segments) < 3 {
		return nil, errInsertPath
	}

	n := len(segments)
	destination, err := unescapeSegments(segments[:n-2])
	if err != nil {
		return nil, err
	}
	datasetID, err := url.PathUnescape(segments[n-2])
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id: %w", err)
	}
	tableID, err := url.PathUnescape(segments[n-1])
	if err != nil {
		return nil, fmt.Errorf("invalid table id: %w", err)
	}
	if destination == "" || datasetID == "" || tableID == "" {
		return nil, errInsertPath
	}

	return &interfaces.ForwardRequest{
		DestinationBaseURL: destination,
		DatasetID:          datasetID,
		TableID:            tableID,
	}, nil
}

func unescapeSegments(segments []string) (string, error) {
	parts := make([]string, len(segments))
	for i, segment := range segments {
		part, err := url.PathUnescape(segment)
		if err != nil {
			return "", fmt.Errorf("invalid destination base url: %w", err)
		}
		parts[i] = part
	}
	return strings.Join(parts, "/"), nil
}
