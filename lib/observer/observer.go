// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package observer is the entry point a beacon client calls from its
// gossip validation path. Each OnGossip* method turns a notification
// into an event and offers it to a bounded queue without blocking; a
// worker goroutine batches the queue and delivers batches to a sink.
//
// The caller never waits on delivery and never sees delivery errors.
// The only error an entry point returns is ErrNetworkInfoUnavailable.
//
// A nil *Observer is valid and discards everything, so hosts can hold
// one unconditionally:
//
//	obs, err := observer.FromEnvironment(ctx, observer.StartConfig{...})
//	if err != nil {
//		return err
//	}
//	defer obs.Close()
//	...
//	obs.OnGossipBlock(msg, block) // no-op when disabled
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/gossipwatch/gossipwatch/lib/batch"
	"github.com/gossipwatch/gossipwatch/lib/beacon"
	"github.com/gossipwatch/gossipwatch/lib/bridge"
	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/ingress"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/metrics"
	"github.com/gossipwatch/gossipwatch/lib/sink"
	"github.com/gossipwatch/gossipwatch/lib/version"
)

// Log throttling for the per-event warning paths.
const (
	warnInterval = 10 * time.Second
)

var (
	// ErrNetworkInfoUnavailable is returned by an entry point when the
	// observer has no usable network context to derive an epoch.
	ErrNetworkInfoUnavailable = errors.New("observer: network info unavailable")

	// ErrMissingNetworkInfo matches the New error for an absent or
	// unusable network context.
	ErrMissingNetworkInfo = bridge.ErrMissingNetworkInfo
)

// Config configures New. Network is required.
type Config struct {
	// Settings is the user configuration. Nil selects config.Default().
	// When Settings disables the subsystem, New returns a nil Observer.
	Settings *config.Config

	// Network is the chain context. The configured network name
	// override is applied to a copy.
	Network *beacon.NetworkInfo

	// Sink receives batches. Nil selects a sink.Processor exporting to
	// the configured outputs.
	Sink sink.Sink

	// Client identifies the host build. Empty fields default to the
	// Gossipwatch name and version.
	Client config.ClientInfo

	// LogLevel is forwarded to the sink.
	LogLevel string

	Logger *slog.Logger
	Clock  clock.Clock

	// Registerer receives the pipeline's collectors. Nil registers
	// them on a private registry.
	Registerer prometheus.Registerer

	// QueueCapacity bounds the ingress queue. Zero selects
	// ingress.DefaultCapacity.
	QueueCapacity int

	// Batch knobs; zero values select the batch package defaults.
	MaxBatchSize  int
	FlushInterval time.Duration
	IdlePoll      time.Duration
	BusyPoll      time.Duration
}

// Observer receives gossip notifications. Methods are safe for
// concurrent use and never block.
type Observer struct {
	network *beacon.NetworkInfo
	queue   *ingress.Queue
	bridge  *bridge.Bridge
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	notReadyLog rate.Sometimes
	dropLog     rate.Sometimes

	// done is closed when the worker has shut the bridge down.
	done      chan struct{}
	closeOnce sync.Once
	cleanup   runtime.Cleanup
}

// worker is the goroutine that owns the bridge after construction.
type worker struct {
	bridge    *bridge.Bridge
	runtime   config.RuntimeConfig
	scheduler *batch.Scheduler
	done      chan struct{}
}

// New builds the pipeline, starts its worker, and blocks until the
// sink is initialized or has failed. Initialization failures are
// *bridge.InitError. Metrics are registered on cfg.Registerer; an
// observer built again on the same registerer shares its collectors,
// and a conflicting collector the host registered is an error.
func New(ctx context.Context, cfg Config) (*Observer, error) {
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if !cfg.Settings.Enabled {
		return nil, nil
	}
	if err := cfg.Network.Validate(); err != nil {
		return nil, &bridge.InitError{Kind: bridge.InitMissingNetworkInfo, Err: err}
	}

	o, work, err := assemble(cfg)
	if err != nil {
		return nil, err
	}
	initResult := make(chan error, 1)
	go work.run(ctx, initResult)
	if err = <-initResult; err != nil {
		<-o.done
		return nil, err
	}

	// An observer dropped without Close still stops its worker. The
	// cleanup holds only the queue, which never refers back to o.
	o.cleanup = runtime.AddCleanup(o, func(queue *ingress.Queue) { queue.Close() }, o.queue)

	o.logger.Info("observer started",
		"network", o.network.String(),
		"queue_capacity", o.queue.Cap(),
	)
	return o, nil
}

// assemble wires the pipeline without starting it. cfg.Settings and
// cfg.Network must be set.
func assemble(cfg Config) (*Observer, *worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}
	if cfg.Client.Name == "" {
		cfg.Client.Name = version.Name
	}
	if cfg.Client.Version == "" {
		cfg.Client.Version = version.Short()
	}
	collectors, err := metrics.New(cfg.Registerer)
	if err != nil {
		return nil, nil, err
	}

	network := *cfg.Network
	if override := cfg.Settings.NetworkNameOverride(); override != "" {
		network.NetworkName = override
	}

	target := cfg.Sink
	if target == nil {
		target = sink.NewProcessor(sink.ProcessorOptions{
			Clock:   cfg.Clock,
			Logger:  cfg.Logger.With("component", "sink"),
			Metrics: collectors,
		})
	}
	deliveryBridge := bridge.New(target, bridge.Options{Logger: cfg.Logger.With("component", "bridge")})
	queue := ingress.New(cfg.QueueCapacity)

	scheduler := batch.New(batch.Config{
		Queue:         queue,
		Sender:        deliveryBridge,
		Ready:         deliveryBridge.Ready,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger.With("component", "batch"),
		Metrics:       collectors,
		MaxBatchSize:  cfg.MaxBatchSize,
		FlushInterval: cfg.FlushInterval,
		IdlePoll:      cfg.IdlePoll,
		BusyPoll:      cfg.BusyPoll,
	})

	runtimeConfig := cfg.Settings.Runtime(config.Network{
		GenesisTime:    network.GenesisTime,
		Name:           network.NetworkName,
		ID:             network.NetworkID,
		SlotsPerEpoch:  network.SlotsPerEpoch,
		SecondsPerSlot: network.SecondsPerSlot,
	}, cfg.Client, cfg.LogLevel)

	done := make(chan struct{})
	o := &Observer{
		network:     &network,
		queue:       queue,
		bridge:      deliveryBridge,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     collectors,
		notReadyLog: rate.Sometimes{First: 1, Interval: warnInterval},
		dropLog:     rate.Sometimes{First: 1, Interval: warnInterval},
		done:        done,
	}
	return o, &worker{
		bridge:    deliveryBridge,
		runtime:   runtimeConfig,
		scheduler: scheduler,
		done:      done,
	}, nil
}

// run initializes the bridge, reports the outcome once, then runs the
// scheduler until the queue closes. The bridge is shut down on every
// exit path.
func (w *worker) run(ctx context.Context, initResult chan<- error) {
	defer close(w.done)
	defer w.bridge.Shutdown()

	if err := w.bridge.Initialize(ctx, w.runtime); err != nil {
		initResult <- err
		return
	}
	initResult <- nil
	w.scheduler.Run(context.Background())
}

// Ready reports whether events are currently accepted.
func (o *Observer) Ready() bool {
	return o != nil && o.bridge.Ready()
}

// Close stops accepting events, discards anything not yet sent, and
// waits for the worker to shut the sink down. Safe to call more than
// once.
func (o *Observer) Close() {
	if o == nil {
		return
	}
	o.closeOnce.Do(func() {
		o.cleanup.Stop()
		o.queue.Close()
		<-o.done
		o.logger.Info("observer stopped")
	})
}

// String summarizes the observer for logs.
func (o *Observer) String() string {
	if o == nil {
		return "observer(disabled)"
	}
	return fmt.Sprintf("observer(%s, ready=%t)", o.network.NetworkName, o.bridge.Ready())
}
