package pushbq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/maximhq/pushbq/interfaces"
	"github.com/maximhq/pushbq/providers"
)

// RequestMetrics is a snapshot of the gateway counters
type RequestMetrics struct {
	RequestCount   int64         `json:"request_count"`
	SuccessCount   int64         `json:"success_count"`
	ErrorCount     int64         `json:"error_count"`
	InvalidCount   int64         `json:"invalid_count"`
	TotalTime      time.Duration `json:"total_time"`
	AverageLatency time.Duration `json:"average_latency"`
}

// forwardProvider is what the gateway needs from a downstream provider
type forwardProvider interface {
	interfaces.Forwarder
	ProjectID() string
	Close()
}

// PushBQ validates forward requests, runs plugins around them and relays them
// to the configured provider. It holds no per-request state and is safe for
// concurrent use.
type PushBQ struct {
	provider forwardProvider
	plugins  []interfaces.Plugin
	logger   interfaces.Logger

	requestCount   atomic.Int64
	successCount   atomic.Int64
	errorCount     atomic.Int64
	invalidCount   atomic.Int64
	totalTimeNanos atomic.Int64
}

// Init initializes a new PushBQ instance with the given config
func Init(config interfaces.PushBQConfig) (*PushBQ, error) {
	if config.Logger == nil {
		config.Logger = NewDefaultLogger(interfaces.LogLevelInfo)
	}

	forwarderConfig := config.Forwarder
	if forwarderConfig.ProjectID == "" {
		forwarderConfig.ProjectID = interfaces.DefaultProjectID
	}
	if err := providers.ValidateIdentifier("project_id", forwarderConfig.ProjectID); err != nil {
		return nil, fmt.Errorf("invalid forwarder config: %w", err)
	}
	if forwarderConfig.NetworkConfig.DefaultRequestTimeoutInSeconds <= 0 {
		forwarderConfig.NetworkConfig.DefaultRequestTimeoutInSeconds = interfaces.DefaultRequestTimeoutInSeconds
	}
	if forwarderConfig.NetworkConfig.MaxConnsPerHost <= 0 {
		forwarderConfig.NetworkConfig.MaxConnsPerHost = interfaces.DefaultMaxConnsPerHost
	}

	pushbq := &PushBQ{
		provider: providers.NewBigQueryProvider(&forwarderConfig, config.Logger),
		plugins:  config.Plugins,
		logger:   config.Logger,
	}

	config.Logger.Info(fmt.Sprintf("forwarding inserts for project %s (timeout %ds)",
		forwarderConfig.ProjectID, forwarderConfig.NetworkConfig.DefaultRequestTimeoutInSeconds))

	return pushbq, nil
}

// ProjectID returns the warehouse project inserts are addressed to
func (pushbq *PushBQ) ProjectID() string {
	return pushbq.provider.ProjectID()
}

// Forward relays a single insert. It never returns an error and never
// panics: validation problems, downstream rejections, transport faults and
// provider panics all come back as a failure outcome.
func (pushbq *PushBQ) Forward(ctx context.Context, req *interfaces.ForwardRequest) interfaces.InsertOutcome {
	return pushbq.handle(ctx, req, "")
}

// Reject records a request the transport could not turn into a complete
// ForwardRequest. Plugins and metrics see it as an invalid_request failure
// with the given reason; nothing is sent downstream.
func (pushbq *PushBQ) Reject(ctx context.Context, req *interfaces.ForwardRequest, reason string) interfaces.InsertOutcome {
	if req == nil {
		req = &interfaces.ForwardRequest{}
	}
	if reason == "" {
		reason = "invalid request"
	}
	return pushbq.handle(ctx, req, reason)
}

// handle runs the plugin pipeline around a forward, or around a rejection
// when rejection is non-empty.
func (pushbq *PushBQ) handle(ctx context.Context, req *interfaces.ForwardRequest, rejection string) interfaces.InsertOutcome {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	if req == nil {
		outcome := interfaces.Failure(interfaces.FailureInvalidRequest, "forward request cannot be nil")
		pushbq.recordMetrics(outcome, time.Since(startTime))
		return outcome
	}

	// Plugins that ran their PreHook also get a PostHook, even on rejection
	ran := 0
	var outcome interfaces.InsertOutcome
	for _, plugin := range pushbq.plugins {
		var err error
		ctx, err = pushbq.runPreHook(ctx, plugin, req)
		ran++
		if err != nil {
			outcome = interfaces.Failure(interfaces.FailureInvalidRequest,
				fmt.Sprintf("%s %s: %v", interfaces.ErrForwarderPluginRejects, plugin.GetName(), err))
			break
		}
	}

	switch {
	case outcome.Status != "":
	case rejection != "":
		outcome = interfaces.Failure(interfaces.FailureInvalidRequest, rejection)
	default:
		outcome = pushbq.forward(ctx, req)
	}

	for i := ran - 1; i >= 0; i-- {
		pushbq.runPostHook(ctx, pushbq.plugins[i], req, outcome)
	}

	pushbq.recordMetrics(outcome, time.Since(startTime))
	if !outcome.IsSuccess() {
		pushbq.logger.Warn(fmt.Sprintf("insert into %s.%s failed (%s): %s", req.DatasetID, req.TableID, outcome.Kind, outcome.Reason))
	}
	return outcome
}

// forward validates the request and hands a normalized copy to the provider
func (pushbq *PushBQ) forward(ctx context.Context, req *interfaces.ForwardRequest) (outcome interfaces.InsertOutcome) {
	destination, err := providers.NormalizeDestination(req.DestinationBaseURL)
	if err != nil {
		return interfaces.Failure(interfaces.FailureInvalidRequest, err.Error())
	}
	if err := providers.ValidateIdentifier("dataset_id", req.DatasetID); err != nil {
		return interfaces.Failure(interfaces.FailureInvalidRequest, err.Error())
	}
	if err := providers.ValidateIdentifier("table_id", req.TableID); err != nil {
		return interfaces.Failure(interfaces.FailureInvalidRequest, err.Error())
	}

	normalized := *req
	normalized.DestinationBaseURL = destination

	defer func() {
		if r := recover(); r != nil {
			pushbq.logger.Error(fmt.Errorf("%s: %v", interfaces.ErrForwarderPanic, r))
			outcome = interfaces.Failure(interfaces.FailureTransport, fmt.Sprintf("%s: %v", interfaces.ErrForwarderPanic, r))
		}
	}()

	return pushbq.provider.Forward(ctx, &normalized)
}

func (pushbq *PushBQ) runPreHook(ctx context.Context, plugin interfaces.Plugin, req *interfaces.ForwardRequest) (newCtx context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			newCtx, err = ctx, fmt.Errorf("%s: %v", interfaces.ErrForwarderPanic, r)
		}
	}()
	newCtx, err = plugin.PreHook(ctx, req)
	if newCtx == nil {
		newCtx = ctx
	}
	return newCtx, err
}

func (pushbq *PushBQ) runPostHook(ctx context.Context, plugin interfaces.Plugin, req *interfaces.ForwardRequest, outcome interfaces.InsertOutcome) {
	defer func() {
		if r := recover(); r != nil {
			pushbq.logger.Error(fmt.Errorf("plugin %s post hook panicked: %v", plugin.GetName(), r))
		}
	}()
	plugin.PostHook(ctx, req, outcome)
}

func (pushbq *PushBQ) recordMetrics(outcome interfaces.InsertOutcome, elapsed time.Duration) {
	pushbq.requestCount.Add(1)
	pushbq.totalTimeNanos.Add(int64(elapsed))
	switch {
	case outcome.IsSuccess():
		pushbq.successCount.Add(1)
	case outcome.Kind == interfaces.FailureInvalidRequest:
		pushbq.invalidCount.Add(1)
		pushbq.errorCount.Add(1)
	default:
		pushbq.errorCount.Add(1)
	}
}

// GetMetrics returns a snapshot of the request counters
func (pushbq *PushBQ) GetMetrics() RequestMetrics {
	metrics := RequestMetrics{
		RequestCount: pushbq.requestCount.Load(),
		SuccessCount: pushbq.successCount.Load(),
		ErrorCount:   pushbq.errorCount.Load(),
		InvalidCount: pushbq.invalidCount.Load(),
		TotalTime:    time.Duration(pushbq.totalTimeNanos.Load()),
	}
	if metrics.RequestCount > 0 {
		metrics.AverageLatency = metrics.TotalTime / time.Duration(metrics.RequestCount)
	}
	return metrics
}

// GetAllStats returns request metrics in a loggable form
func (pushbq *PushBQ) GetAllStats() map[string]interface{} {
	metrics := pushbq.GetMetrics()
	errorRate := 0.0
	if metrics.RequestCount > 0 {
		errorRate = float64(metrics.ErrorCount) / float64(metrics.RequestCount) * 100
	}
	return map[string]interface{}{
		"project_id": pushbq.ProjectID(),
		"request_metrics": map[string]interface{}{
			"request_count":   metrics.RequestCount,
			"success_count":   metrics.SuccessCount,
			"error_count":     metrics.ErrorCount,
			"invalid_count":   metrics.InvalidCount,
			"total_time":      metrics.TotalTime.String(),
			"average_latency": metrics.AverageLatency.String(),
			"error_rate":      fmt.Sprintf("%.2f%%", errorRate),
		},
	}
}

// Shutdown logs the final statistics and releases idle downstream connections
func (pushbq *PushBQ) Shutdown() {
	pushbq.logger.Info("[PUSHBQ] Graceful Shutdown Initiated - Closing downstream connections...")

	statsJSON, err := sonic.MarshalIndent(pushbq.GetAllStats(), "", "  ")
	if err != nil {
		pushbq.logger.Info(fmt.Sprintf("[PUSHBQ] Stats collection failed: %v", err))
	} else {
		pushbq.logger.Info(fmt.Sprintf("[PUSHBQ] Statistics:\n%s", statsJSON))
	}

	pushbq.provider.Close()
}
