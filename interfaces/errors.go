package interfaces

// Messages used when folding failures into an InsertOutcome
const (
	ErrForwarderRequest       = "error making insertAll request"
	ErrForwarderRejected      = "failed to insert data into BigQuery"
	ErrForwarderInvalidURL    = "invalid destination base url"
	ErrForwarderMissingField  = "missing required field"
	ErrForwarderInvalidField  = "invalid path identifier"
	ErrForwarderPanic         = "forwarder panicked"
	ErrForwarderPluginRejects = "request rejected by plugin"
)
