package pushbq

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/maximhq/pushbq/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func quietLogger() *DefaultLogger {
	return NewDefaultLoggerWithWriters(interfaces.LogLevelError, &bytes.Buffer{}, &bytes.Buffer{})
}

// startInsertAPI runs a downstream that answers every request with status
// and sends the request URIs it saw on the returned channel.
func startInsertAPI(t *testing.T, status int) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	uris := make(chan string, 16)
	server := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			uris <- string(ctx.RequestURI())
			ctx.SetStatusCode(status)
			ctx.SetBodyString("ok")
		},
	}
	go server.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { _ = server.Shutdown() })

	return "http://" + ln.Addr().String(), uris
}

// recordingPlugin appends its hook calls to a shared journal
type recordingPlugin struct {
	name    string
	journal *[]string
	mu      *sync.Mutex
	reject  error
	panics  bool

	outcome interfaces.InsertOutcome
}

func (p *recordingPlugin) GetName() string { return p.name }

func (p *recordingPlugin) note(entry string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.journal = append(*p.journal, entry)
}

func (p *recordingPlugin) PreHook(ctx context.Context, req *interfaces.ForwardRequest) (context.Context, error) {
	p.note("pre:" + p.name)
	if p.panics {
		panic("boom")
	}
	return ctx, p.reject
}

func (p *recordingPlugin) PostHook(ctx context.Context, req *interfaces.ForwardRequest, outcome interfaces.InsertOutcome) {
	p.note("post:" + p.name)
	p.outcome = outcome
}

type panickingProvider struct{}

func (panickingProvider) Forward(ctx context.Context, req *interfaces.ForwardRequest) interfaces.InsertOutcome {
	panic("provider exploded")
}
func (panickingProvider) ProjectID() string { return "p" }
func (panickingProvider) Close()            {}

func TestInit_Defaults(t *testing.T) {
	client, err := Init(interfaces.PushBQConfig{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, interfaces.DefaultProjectID, client.ProjectID())
	assert.Equal(t, RequestMetrics{}, client.GetMetrics())
}

func TestInit_WithoutLogger(t *testing.T) {
	client, err := Init(interfaces.PushBQConfig{
		Forwarder: interfaces.ForwarderConfig{ProjectID: "analytics-prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, "analytics-prod", client.ProjectID())
	assert.IsType(t, &DefaultLogger{}, client.logger)
}

func TestInit_RejectsInvalidProjectID(t *testing.T) {
	_, err := Init(interfaces.PushBQConfig{
		Forwarder: interfaces.ForwarderConfig{ProjectID: "bad/project"},
		Logger:    quietLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")
}

func TestForward_Success(t *testing.T) {
	base, uris := startInsertAPI(t, fasthttp.StatusOK)
	client, err := Init(interfaces.PushBQConfig{
		Forwarder: interfaces.ForwarderConfig{ProjectID: "analytics"},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: base + "/",
		DatasetID:          "ds1",
		TableID:            "t1",
		Payload:            []byte(`{"a":1}`),
	})

	require.True(t, outcome.IsSuccess(), outcome.Reason)
	assert.Equal(t, "/bigquery/v2/projects/analytics/datasets/ds1/tables/t1/insertAll", <-uris)

	metrics := client.GetMetrics()
	assert.Equal(t, int64(1), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.SuccessCount)
	assert.Zero(t, metrics.ErrorCount)
}

func TestForward_RepairsCollapsedScheme(t *testing.T) {
	base, uris := startInsertAPI(t, fasthttp.StatusOK)
	client, err := Init(interfaces.PushBQConfig{Logger: quietLogger()})
	require.NoError(t, err)

	collapsed := strings.Replace(base, "http://", "http:/", 1)
	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: collapsed, DatasetID: "ds", TableID: "t", Payload: []byte(`{}`),
	})

	require.True(t, outcome.IsSuccess(), outcome.Reason)
	assert.Equal(t, "/bigquery/v2/projects/your_project_id/datasets/ds/tables/t/insertAll", <-uris)
}

func TestForward_DownstreamRejection(t *testing.T) {
	base, _ := startInsertAPI(t, fasthttp.StatusForbidden)
	client, err := Init(interfaces.PushBQConfig{Logger: quietLogger()})
	require.NoError(t, err)

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: base, DatasetID: "ds1", TableID: "t1", Payload: []byte(`{"a":1}`),
	})

	assert.False(t, outcome.IsSuccess())
	assert.Equal(t, interfaces.FailureDownstreamRejected, outcome.Kind)
	assert.Equal(t, "failed to insert data into BigQuery: status 403", outcome.Reason)

	metrics := client.GetMetrics()
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Zero(t, metrics.InvalidCount)
}

func TestForward_InvalidRequests(t *testing.T) {
	client, err := Init(interfaces.PushBQConfig{Logger: quietLogger()})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *interfaces.ForwardRequest
	}{
		{name: "nil request", req: nil},
		{name: "empty destination", req: &interfaces.ForwardRequest{DatasetID: "ds", TableID: "t"}},
		{name: "unsupported scheme", req: &interfaces.ForwardRequest{DestinationBaseURL: "ftp://host", DatasetID: "ds", TableID: "t"}},
		{name: "missing dataset", req: &interfaces.ForwardRequest{DestinationBaseURL: "http://localhost:1", TableID: "t"}},
		{name: "missing table", req: &interfaces.ForwardRequest{DestinationBaseURL: "http://localhost:1", DatasetID: "ds"}},
		{name: "table with slash", req: &interfaces.ForwardRequest{DestinationBaseURL: "http://localhost:1", DatasetID: "ds", TableID: "a/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := client.Forward(context.Background(), tt.req)
			assert.False(t, outcome.IsSuccess())
			assert.Equal(t, interfaces.FailureInvalidRequest, outcome.Kind)
			assert.NotEmpty(t, outcome.Reason)
		})
	}

	metrics := client.GetMetrics()
	assert.Equal(t, int64(len(tests)), metrics.InvalidCount)
	assert.Equal(t, int64(len(tests)), metrics.ErrorCount)
}

func TestForward_NilContext(t *testing.T) {
	base, _ := startInsertAPI(t, fasthttp.StatusOK)
	client, err := Init(interfaces.PushBQConfig{Logger: quietLogger()})
	require.NoError(t, err)

	//nolint:staticcheck
	outcome := client.Forward(nil, &interfaces.ForwardRequest{
		DestinationBaseURL: base, DatasetID: "ds", TableID: "t", Payload: []byte(`{}`),
	})
	assert.True(t, outcome.IsSuccess(), outcome.Reason)
}

func TestForward_PluginOrder(t *testing.T) {
	base, _ := startInsertAPI(t, fasthttp.StatusOK)
	var journal []string
	mu := &sync.Mutex{}
	first := &recordingPlugin{name: "first", journal: &journal, mu: mu}
	second := &recordingPlugin{name: "second", journal: &journal, mu: mu}

	client, err := Init(interfaces.PushBQConfig{
		Plugins: []interfaces.Plugin{first, second},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: base, DatasetID: "ds", TableID: "t", Payload: []byte(`{}`),
	})

	require.True(t, outcome.IsSuccess(), outcome.Reason)
	assert.Equal(t, []string{"pre:first", "pre:second", "post:second", "post:first"}, journal)
	assert.True(t, first.outcome.IsSuccess())
	assert.True(t, second.outcome.IsSuccess())
}

func TestForward_PluginRejection(t *testing.T) {
	base, uris := startInsertAPI(t, fasthttp.StatusOK)
	var journal []string
	mu := &sync.Mutex{}
	first := &recordingPlugin{name: "first", journal: &journal, mu: mu, reject: errors.New("quota exceeded")}
	second := &recordingPlugin{name: "second", journal: &journal, mu: mu}

	client, err := Init(interfaces.PushBQConfig{
		Plugins: []interfaces.Plugin{first, second},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: base, DatasetID: "ds", TableID: "t", Payload: []byte(`{}`),
	})

	assert.False(t, outcome.IsSuccess())
	assert.Equal(t, interfaces.FailureInvalidRequest, outcome.Kind)
	assert.Equal(t, "request rejected by plugin first: quota exceeded", outcome.Reason)
	assert.Equal(t, []string{"pre:first", "post:first"}, journal)
	assert.Len(t, uris, 0)
}

func TestForward_PluginPanicIsRejection(t *testing.T) {
	var journal []string
	plugin := &recordingPlugin{name: "flaky", journal: &journal, mu: &sync.Mutex{}, panics: true}

	client, err := Init(interfaces.PushBQConfig{
		Plugins: []interfaces.Plugin{plugin},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: "http://localhost:1", DatasetID: "ds", TableID: "t",
	})

	assert.False(t, outcome.IsSuccess())
	assert.Contains(t, outcome.Reason, interfaces.ErrForwarderPanic)
}

func TestForward_ProviderPanicIsFailure(t *testing.T) {
	stderr := &bytes.Buffer{}
	client, err := Init(interfaces.PushBQConfig{
		Logger: NewDefaultLoggerWithWriters(interfaces.LogLevelError, &bytes.Buffer{}, stderr),
	})
	require.NoError(t, err)
	client.provider = panickingProvider{}

	outcome := client.Forward(context.Background(), &interfaces.ForwardRequest{
		DestinationBaseURL: "http://localhost:1", DatasetID: "ds", TableID: "t",
	})

	assert.False(t, outcome.IsSuccess())
	assert.Equal(t, interfaces.FailureTransport, outcome.Kind)
	assert.Contains(t, outcome.Reason, "provider exploded")
	assert.Contains(t, stderr.String(), "forwarder panicked")
}

func TestGetAllStats(t *testing.T) {
	client, err := Init(interfaces.PushBQConfig{
		Forwarder: interfaces.ForwarderConfig{ProjectID: "stats"},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	client.Forward(context.Background(), nil)
	stats := client.GetAllStats()

	assert.Equal(t, "stats", stats["project_id"])
	requestMetrics, ok := stats["request_metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), requestMetrics["request_count"])
	assert.Equal(t, "100.00%", requestMetrics["error_rate"])
}

func TestShutdown_LogsStatistics(t *testing.T) {
	stdout := &bytes.Buffer{}
	client, err := Init(interfaces.PushBQConfig{
		Logger: NewDefaultLoggerWithWriters(interfaces.LogLevelInfo, stdout, &bytes.Buffer{}),
	})
	require.NoError(t, err)

	client.Shutdown()
	assert.Contains(t, stdout.String(), "[PUSHBQ] Statistics:")
	assert.Contains(t, stdout.String(), "your_project_id")
}

func TestReject_CountsAsInvalidAndRunsPlugins(t *testing.T) {
	var journal []string
	plugin := &recordingPlugin{name: "observer", journal: &journal, mu: &sync.Mutex{}}

	client, err := Init(interfaces.PushBQConfig{
		Plugins: []interfaces.Plugin{plugin},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	outcome := client.Reject(context.Background(), &interfaces.ForwardRequest{Payload: []byte(`{}`)}, "insert path is incomplete")

	assert.False(t, outcome.IsSuccess())
	assert.Equal(t, interfaces.FailureInvalidRequest, outcome.Kind)
	assert.Equal(t, "insert path is incomplete", outcome.Reason)
	assert.Equal(t, []string{"pre:observer", "post:observer"}, journal)
	assert.Equal(t, interfaces.FailureInvalidRequest, plugin.outcome.Kind)

	metrics := client.GetMetrics()
	assert.Equal(t, int64(1), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.InvalidCount)

	// a nil request is tolerated
	assert.Equal(t, interfaces.FailureInvalidRequest, client.Reject(context.Background(), nil, "").Kind)
}
