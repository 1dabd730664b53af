// Package telemetry provides a Prometheus plugin that records the outcome and
// latency of every forward handled by PushBQ.
package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/maximhq/pushbq/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

const PluginName = "telemetry"

type contextKey string

const startTimeKey contextKey = "pushbq-telemetry-start"

// PrometheusPlugin implements interfaces.Plugin
type PrometheusPlugin struct {
	logger interfaces.Logger

	forwardsTotal      *prometheus.CounterVec
	forwardDuration    *prometheus.HistogramVec
	downstreamStatuses *prometheus.CounterVec
}

// Init creates the collectors and registers them on registerer. Collectors
// that are already registered, for example by an earlier Init, are reused.
func Init(registerer prometheus.Registerer, logger interfaces.Logger) (*PrometheusPlugin, error) {
	forwardsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushbq_forward_requests_total",
		Help: "Total number of forwarded inserts by outcome and failure kind.",
	}, []string{"outcome", "kind"})

	forwardDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pushbq_forward_duration_seconds",
		Help:    "Latency of forwarded inserts in seconds, plugins included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	downstreamStatuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pushbq_downstream_responses_total",
		Help: "Responses received from the insert API by status code.",
	}, []string{"code"})

	var err error
	if forwardsTotal, err = registerCollector(registerer, forwardsTotal); err != nil {
		return nil, err
	}
	if forwardDuration, err = registerCollector(registerer, forwardDuration); err != nil {
		return nil, err
	}
	if downstreamStatuses, err = registerCollector(registerer, downstreamStatuses); err != nil {
		return nil, err
	}

	return &PrometheusPlugin{
		logger:             logger,
		forwardsTotal:      forwardsTotal,
		forwardDuration:    forwardDuration,
		downstreamStatuses: downstreamStatuses,
	}, nil
}

// registerCollector registers c, or returns the collector registered before it
func registerCollector[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			if existing, ok := alreadyRegistered.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// GetName returns the name of the plugin
func (p *PrometheusPlugin) GetName() string {
	return PluginName
}

// PreHook stamps the start time of the forward
func (p *PrometheusPlugin) PreHook(ctx context.Context, req *interfaces.ForwardRequest) (context.Context, error) {
	return context.WithValue(ctx, startTimeKey, time.Now()), nil
}

// PostHook records the outcome
func (p *PrometheusPlugin) PostHook(ctx context.Context, req *interfaces.ForwardRequest, outcome interfaces.InsertOutcome) {
	kind := string(outcome.Kind)
	if kind == "" {
		kind = "none"
	}
	p.forwardsTotal.WithLabelValues(string(outcome.Status), kind).Inc()

	if start, ok := ctx.Value(startTimeKey).(time.Time); ok {
		p.forwardDuration.WithLabelValues(string(outcome.Status)).Observe(time.Since(start).Seconds())
	} else if p.logger != nil {
		p.logger.Debug("telemetry: start time missing from context, latency not recorded")
	}

	if outcome.StatusCode != 0 {
		p.downstreamStatuses.WithLabelValues(strconv.Itoa(outcome.StatusCode)).Inc()
	}
}
