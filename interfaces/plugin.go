package interfaces

import "context"

// Plugin observes every forward handled by the gateway.
//
// PreHook runs before the request is validated and sent. Returning an error
// rejects the request with an invalid_request outcome and skips the downstream
// call. PostHook runs for every request whose PreHook ran, after the outcome is
// known, and cannot alter it.
type Plugin interface {
	GetName() string
	PreHook(ctx context.Context, req *ForwardRequest) (context.Context, error)
	PostHook(ctx context.Context, req *ForwardRequest, outcome InsertOutcome)
}
