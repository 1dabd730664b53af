package interfaces

import "context"

//* Request Structs

// ForwardRequest is a single insert to relay downstream. Payload is passed
// through byte for byte; it is never parsed or re-encoded.
type ForwardRequest struct {
	DestinationBaseURL string `json:"destination_base_url"`
	DatasetID          string `json:"dataset_id"`
	TableID            string `json:"table_id"`
	Payload            []byte `json:"-"`
}

//* Response Structs

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// FailureKind classifies why a forward did not succeed
type FailureKind string

const (
	FailureInvalidRequest     FailureKind = "invalid_request"
	FailureDownstreamRejected FailureKind = "downstream_rejected"
	FailureTransport          FailureKind = "transport_failure"
)

// InsertOutcome is the result of a forward. It is either a success or a
// failure carrying a human readable reason.
type InsertOutcome struct {
	Status     OutcomeStatus `json:"status"`
	Kind       FailureKind   `json:"kind,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	StatusCode int           `json:"status_code,omitempty"` // downstream status, 0 when none was received
}

// Success returns a successful outcome
func Success(statusCode int) InsertOutcome {
	return InsertOutcome{Status: OutcomeSuccess, StatusCode: statusCode}
}

// Failure returns a failed outcome of the given kind
func Failure(kind FailureKind, reason string) InsertOutcome {
	return InsertOutcome{Status: OutcomeFailure, Kind: kind, Reason: reason}
}

// IsSuccess reports whether the downstream accepted the insert
func (o InsertOutcome) IsSuccess() bool {
	return o.Status == OutcomeSuccess
}

// Forwarder relays a ForwardRequest to an insert API.
// Implementations never return errors: every failure is folded into the outcome.
type Forwarder interface {
	Forward(ctx context.Context, req *ForwardRequest) InsertOutcome
}
