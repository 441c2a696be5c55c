// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// gossipwatch-collector is a reference receiver for Gossipwatch
// outputs. It accepts envelopes over HTTP (POST /v1/batches) and
// websocket (GET /v1/stream) and appends every event, tagged with the
// sending node, to a JSON lines file or stdout. Prometheus metrics are
// served on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listenAddress string
		outputPath    string
		logLevel      string
		showVersion   bool
	)
	flagSet := pflag.NewFlagSet("gossipwatch-collector", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", ":9095", "address to serve batches, stream, and metrics on")
	flagSet.StringVarP(&outputPath, "output", "o", "-", "JSON lines file to append records to (- for stdout)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("gossipwatch-collector %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level)

	var out io.Writer = os.Stdout
	if outputPath != "-" {
		file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}
		defer file.Close()
		out = file
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := NewCollector(out, clock.Real(), logger, registry)

	mux := http.NewServeMux()
	collector.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Streams are hijacked connections that Shutdown does not wait
	// for; they end when ctx does.
	server := &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.ListenAndServe()
	}()
	logger.Info("collector listening", "address", listenAddress, "output", outputPath, "version", version.Info())

	select {
	case err := <-serveDone:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
