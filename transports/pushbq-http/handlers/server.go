package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/fasthttp/router"
	"github.com/maximhq/pushbq"
	"github.com/maximhq/pushbq/interfaces"
	"github.com/maximhq/pushbq/plugins/telemetry"
	"github.com/maximhq/pushbq/transports/pushbq-http/lib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const shutdownTimeout = 10 * time.Second

// PushBQHTTPServer represents a HTTP server instance.
type PushBQHTTPServer struct {
	Config *lib.Config
	Client *pushbq.PushBQ

	Server *fasthttp.Server
	Router *router.Router
}

// NewPushBQHTTPServer creates a new instance of PushBQHTTPServer.
func NewPushBQHTTPServer(config *lib.Config) *PushBQHTTPServer {
	return &PushBQHTTPServer{Config: config}
}

// RegisterCollectorSafely attempts to register a Prometheus collector,
// handling the case where it may already be registered.
func RegisterCollectorSafely(collector prometheus.Collector) {
	if err := prometheus.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			logger.Error(fmt.Errorf("failed to register prometheus collector: %w", err))
		}
	}
}

// Bootstrap creates the gateway, the telemetry plugin and the router.
func (s *PushBQHTTPServer) Bootstrap(log interfaces.Logger) error {
	SetLogger(log)
	lib.SetLogger(log)

	RegisterCollectorSafely(collectors.NewGoCollector())
	RegisterCollectorSafely(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	promPlugin, err := telemetry.Init(prometheus.DefaultRegisterer, log)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry plugin: %w", err)
	}

	client, err := pushbq.Init(interfaces.PushBQConfig{
		Forwarder: s.Config.Forwarder,
		Plugins:   []interfaces.Plugin{promPlugin},
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pushbq: %w", err)
	}
	s.Client = client

	s.Router = router.New()
	s.RegisterRoutes(s.Router)

	s.Server = &fasthttp.Server{
		Handler:            ChainMiddlewares(s.Router.Handler, RequestIDMiddleware),
		Name:               "pushbq",
		MaxRequestBodySize: 32 * 1024 * 1024,
	}
	return nil
}

// RegisterRoutes wires every handler onto r
func (s *PushBQHTTPServer) RegisterRoutes(r *router.Router) {
	NewHealthHandler(s.Client).RegisterRoutes(r)
	NewInsertHandler(s.Client, s.Config.LegacyStatusCodes).RegisterRoutes(r)
	NewConnectionHandler(s.Config.ProbeTimeout).RegisterRoutes(r)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	if s.Config.EnableProfiling {
		logger.Info("profiling endpoints enabled under /debug")
		NewDevPprofHandler().RegisterRoutes(r)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *PushBQHTTPServer) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("PushBQ HTTP server listening on %s", s.Config.Addr()))
		serverErr <- s.Server.ListenAndServe(s.Config.Addr())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down PushBQ HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error(fmt.Errorf("graceful shutdown failed: %w", err))
	}
	s.Client.Shutdown()
	return nil
}
