// Command pushbq-http serves the PushBQ insert relay over HTTP.
//
// Configuration comes from PUSHBQ_* environment variables, optionally seeded
// from a .env file in the working directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maximhq/pushbq"
	"github.com/maximhq/pushbq/transports/pushbq-http/handlers"
	"github.com/maximhq/pushbq/transports/pushbq-http/lib"
	_ "go.uber.org/automaxprocs"
)

func main() {
	config, err := lib.LoadConfig(lib.DefaultEnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := pushbq.NewDefaultLogger(config.LogLevel)

	server := handlers.NewPushBQHTTPServer(config)
	if err := server.Bootstrap(logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
