package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/maximhq/pushbq/interfaces"
	"github.com/valyala/fasthttp"
)

// BigQueryInsertError is one rejected row of an insertAll response
type BigQueryInsertError struct {
	Index  int `json:"index"`
	Errors []struct {
		Reason   string `json:"reason"`
		Location string `json:"location"`
		Message  string `json:"message"`
	} `json:"errors"`
}

// BigQueryInsertAllResponse is the body of a tables.insertAll response.
// It is decoded for diagnostics only and never changes the outcome.
type BigQueryInsertAllResponse struct {
	Kind         string                `json:"kind"`
	InsertErrors []BigQueryInsertError `json:"insertErrors"`
}

// BigQueryProvider forwards payloads to a BigQuery compatible
// tables.insertAll endpoint. It is safe for concurrent use; the only shared
// state is the fasthttp connection pool.
type BigQueryProvider struct {
	logger    interfaces.Logger
	client    *fasthttp.Client
	projectID string
	timeout   time.Duration
}

// NewBigQueryProvider creates a new BigQueryProvider instance
func NewBigQueryProvider(config *interfaces.ForwarderConfig, logger interfaces.Logger) *BigQueryProvider {
	timeout := time.Second * time.Duration(config.NetworkConfig.DefaultRequestTimeoutInSeconds)

	client := &fasthttp.Client{
		ReadTimeout:            timeout,
		WriteTimeout:           timeout,
		MaxConnsPerHost:        config.NetworkConfig.MaxConnsPerHost,
		MaxConnWaitTimeout:     timeout,
		DisablePathNormalizing: true,
	}

	// Configure proxy if provided
	client = configureProxy(client, config.ProxyConfig, logger)

	return &BigQueryProvider{
		logger:    logger,
		client:    client,
		projectID: config.ProjectID,
		timeout:   timeout,
	}
}

// ProjectID returns the warehouse project every insert is addressed to
func (provider *BigQueryProvider) ProjectID() string {
	return provider.projectID
}

// Forward POSTs the payload to the insertAll endpoint exactly once.
// A 2xx status is a success whatever the body says; anything else, and any
// transport fault, becomes a failure outcome.
func (provider *BigQueryProvider) Forward(ctx context.Context, forwardReq *interfaces.ForwardRequest) interfaces.InsertOutcome {
	url := BuildInsertAllURL(forwardReq.DestinationBaseURL, provider.projectID, forwardReq.DatasetID, forwardReq.TableID)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(forwardReq.Payload)

	provider.logger.Debug(fmt.Sprintf("forwarding %d bytes to %s", len(forwardReq.Payload), url))

	if err := provider.client.DoDeadline(req, resp, provider.deadline(ctx)); err != nil {
		return interfaces.Failure(interfaces.FailureTransport, fmt.Sprintf("%s: %v", interfaces.ErrForwarderRequest, err))
	}

	statusCode := resp.StatusCode()
	if statusCode < fasthttp.StatusOK || statusCode >= fasthttp.StatusMultipleChoices {
		outcome := interfaces.Failure(interfaces.FailureDownstreamRejected, fmt.Sprintf("%s: status %d", interfaces.ErrForwarderRejected, statusCode))
		outcome.StatusCode = statusCode
		return outcome
	}

	// A 2xx stays a success even when the body cannot be decoded
	body, err := resp.BodyUncompressed()
	if err != nil {
		provider.logger.Warn(fmt.Sprintf("cannot decode response body with Content-Encoding %q, logging raw bytes: %v",
			resp.Header.ContentEncoding(), err))
		body = resp.Body()
	}

	provider.logger.Info(fmt.Sprintf("Response from BigQuery: %s", body))
	provider.reportInsertErrors(forwardReq, body)

	return interfaces.Success(statusCode)
}

// deadline picks the configured timeout unless the caller's context expires first
func (provider *BigQueryProvider) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(provider.timeout)
	if ctx == nil {
		return deadline
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

// reportInsertErrors logs row level rejections carried in a 2xx response.
// Bodies that are not insertAll responses are ignored.
func (provider *BigQueryProvider) reportInsertErrors(forwardReq *interfaces.ForwardRequest, body []byte) {
	if len(body) == 0 {
		return
	}

	insertResp := acquireInsertAllResponse()
	defer releaseInsertAllResponse(insertResp)

	if err := sonic.Unmarshal(body, insertResp); err != nil {
		return
	}
	if len(insertResp.InsertErrors) == 0 {
		return
	}

	provider.logger.Warn(fmt.Sprintf("%s.%s: %d row(s) rejected by insertAll, first: %s",
		forwardReq.DatasetID, forwardReq.TableID, len(insertResp.InsertErrors), firstInsertErrorMessage(insertResp)))
}

// Close releases idle downstream connections
func (provider *BigQueryProvider) Close() {
	provider.client.CloseIdleConnections()
}
