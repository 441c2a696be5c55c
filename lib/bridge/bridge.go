// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge owns the handshake with a sink and every call into
// it. The bridge turns the sink's numeric statuses into typed errors
// (InitError, SendError) and carries the readiness flag the observer
// gates event capture on.
//
// Every sink call happens under the bridge's lock, so a sink sees at
// most one call at a time.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/sink"
)

// Bridge mediates between the batch scheduler and a sink.
type Bridge struct {
	sink   sink.Sink
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	ready       atomic.Bool

	shutdownOnce sync.Once
}

// Options configures a Bridge.
type Options struct {
	Logger *slog.Logger
}

// New returns a bridge over s. Call Initialize before SendBatch.
func New(s sink.Sink, options Options) *Bridge {
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	return &Bridge{sink: s, logger: options.Logger}
}

// Initialize hands the runtime configuration to the sink. On success
// the bridge becomes ready. It may be called once; later calls return
// ErrAlreadyInitialized whatever the first outcome.
func (b *Bridge) Initialize(ctx context.Context, runtime config.RuntimeConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return ErrAlreadyInitialized
	}
	b.initialized = true

	if err := runtime.ValidateNetwork(); err != nil {
		return &InitError{Kind: InitMissingNetworkInfo, Err: err}
	}
	document, err := runtime.Marshal()
	if err != nil {
		return &InitError{Kind: InitParseFailed, Err: err}
	}
	if err := b.sink.Init(ctx, document); err != nil {
		status, _ := sink.StatusOf(err)
		return &InitError{Kind: initKindFor(status), Err: err}
	}

	b.ready.Store(true)
	b.logger.Info("sink initialized",
		"network", runtime.Processor.Ethereum.Network.Name,
		"outputs", len(runtime.Processor.Outputs),
	)
	return nil
}

// Ready reports whether Initialize succeeded and Shutdown has not run.
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// SendBatch serializes events as a JSON array and transmits it. An
// empty batch is a no-op that never reaches the sink.
func (b *Bridge) SendBatch(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if !b.ready.Load() {
		return &SendError{Kind: SendNotInitialized}
	}

	payload, err := event.EncodeBatch(codec.FormatJSON, events)
	if err != nil {
		return &SendError{Kind: SendSerializationFailed, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready.Load() {
		return &SendError{Kind: SendNotInitialized}
	}
	if err := b.sink.SendEventBatch(ctx, payload); err != nil {
		status, _ := sink.StatusOf(err)
		return &SendError{Kind: sendKindFor(status), Err: err}
	}
	return nil
}

// Shutdown clears readiness and notifies the sink once, if Initialize
// succeeded. A sink whose Init failed is left alone; it released what
// it had started before returning the error. Later calls do nothing.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.ready.Swap(false) {
			b.logger.Debug("sink never initialized, skipping shutdown")
			return
		}
		b.sink.Shutdown()
		b.logger.Info("sink shut down")
	})
}
