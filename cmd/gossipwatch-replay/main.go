// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// gossipwatch-replay drives recorded gossip notifications through an
// observer and its configured outputs, the same path a beacon client
// takes at runtime. Input is JSON lines, one Notification per line,
// from a file or stdin. Prometheus metrics for the pipeline are served
// on --metrics-addr while the replay runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"github.com/spf13/pflag"

	"github.com/gossipwatch/gossipwatch/lib/batch"
	"github.com/gossipwatch/gossipwatch/lib/beacon"
	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/observer"
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
		configPath     string
		logLevel       string
		metricsAddress string
		inputPath      string
		network        beacon.NetworkInfo
		client         config.ClientInfo
		pace           bool
		linger         time.Duration
		showVersion    bool
	)
	flagSet := pflag.NewFlagSet("gossipwatch-replay", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "configuration file (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flagSet.StringVar(&metricsAddress, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.StringVarP(&inputPath, "input", "i", "-", "recorded notifications as JSON lines (- for stdin)")
	flagSet.StringVar(&network.NetworkName, "network", "mainnet", "network name")
	flagSet.Uint64Var(&network.NetworkID, "network-id", 1, "deposit network id")
	flagSet.Uint64Var(&network.GenesisTime, "genesis-time", 1606824023, "genesis time in Unix seconds")
	flagSet.Uint64Var(&network.SlotsPerEpoch, "slots-per-epoch", 32, "slots per epoch")
	flagSet.Uint64Var(&network.SecondsPerSlot, "seconds-per-slot", 12, "seconds per slot")
	flagSet.StringVar(&client.Name, "client-name", version.Name, "client name reported to the sink")
	flagSet.StringVar(&client.Version, "client-version", version.Short(), "client version reported to the sink")
	flagSet.BoolVar(&pace, "pace", false, "replay with the recorded gaps between notifications")
	flagSet.DurationVar(&linger, "linger", batch.DefaultFlushInterval+batch.DefaultIdlePoll,
		"wait this long after the input ends so the last batch is flushed")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("gossipwatch-replay %s\n", version.Full())
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

	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	if settings == nil || !settings.Enabled {
		logger.Info("gossipwatch disabled by configuration")
		return nil
	}

	input := io.Reader(os.Stdin)
	if inputPath != "-" {
		file, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer file.Close()
		input = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	obs, err := observer.New(ctx, observer.Config{
		Settings:   settings,
		Network:    &network,
		Client:     client,
		LogLevel:   logLevel,
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		return fmt.Errorf("starting observer: %w", err)
	}
	defer obs.Close()

	var lifecycle conc.WaitGroup
	var server *http.Server
	if metricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: metricsAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		lifecycle.Go(func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		})
		logger.Info("serving metrics", "address", metricsAddress)
	}

	realClock := clock.Real()
	replay := &replayer{target: obs, clock: realClock, logger: logger, pace: pace}
	stats, replayErr := replay.run(ctx, input)
	logger.Info("replay finished",
		"lines", stats.Lines,
		"replayed", stats.Replayed,
		"skipped", stats.Skipped,
		"by_kind", stats.ByKind,
	)

	if replayErr == nil {
		select {
		case <-realClock.After(linger):
		case <-ctx.Done():
		}
	}
	obs.Close()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
	lifecycle.Wait()

	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		return replayErr
	}
	return nil
}

// loadSettings reads path, or the environment when path is empty.
func loadSettings(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnvironment()
	}
	return config.LoadFile(path)
}
