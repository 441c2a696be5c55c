// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/metrics"
	"github.com/gossipwatch/gossipwatch/lib/output"
)

// stopTimeout bounds each output's Stop during Shutdown.
const stopTimeout = 5 * time.Second

// Export results recorded in OutputExports.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

// ProcessorOptions configures a Processor. Every field is optional.
type ProcessorOptions struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Level, when set, is adjusted to the log_level of the runtime
	// configuration at Init.
	Level *slog.LevelVar

	// NewOutput constructs outputs. Defaults to output.New.
	NewOutput func(config.Output, output.Options) (output.Output, error)
}

// Processor is a Sink that fans each batch out to the outputs named in
// its runtime configuration.
type Processor struct {
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	level     *slog.LevelVar
	newOutput func(config.Output, output.Options) (output.Output, error)

	mu        sync.RWMutex
	running   bool
	header    Header
	exporters []*exporter

	shutdownOnce sync.Once
}

// NewProcessor returns an uninitialized Processor.
func NewProcessor(options ProcessorOptions) *Processor {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.NewUnregistered()
	}
	if options.NewOutput == nil {
		options.NewOutput = output.New
	}
	return &Processor{
		clock:     options.Clock,
		logger:    options.Logger,
		metrics:   options.Metrics,
		level:     options.Level,
		newOutput: options.NewOutput,
	}
}

// Init parses the runtime configuration, checks the network block,
// then constructs and starts every output. If any output fails to
// start, the ones already started are stopped.
func (p *Processor) Init(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return Errorf(StatusInitStart, "already initialized")
	}

	runtime, err := config.ParseRuntime(data)
	if err != nil {
		return &Error{Status: StatusInitParse, Err: err}
	}
	outputs := &config.Config{Outputs: runtime.Processor.Outputs}
	if err := outputs.Validate(); err != nil {
		return &Error{Status: StatusInitParse, Err: err}
	}
	if err := runtime.ValidateNetwork(); err != nil {
		return &Error{Status: StatusInitNetwork, Err: err}
	}
	if p.level != nil && runtime.LogLevel != "" {
		if level, err := logging.ParseLevel(runtime.LogLevel); err == nil {
			p.level.Set(level)
		}
	}

	exporters := make([]*exporter, 0, len(runtime.Processor.Outputs))
	for _, outputConfig := range runtime.Processor.Outputs {
		built, err := p.newExporter(outputConfig)
		if err != nil {
			return &Error{Status: StatusInitConstruct, Err: err}
		}
		exporters = append(exporters, built)
	}

	for i, built := range exporters {
		if err := built.output.Start(ctx); err != nil {
			p.stopExporters(exporters[:i])
			return Errorf(StatusInitStart, "starting output %q: %w", built.output.Name(), err)
		}
	}

	processor := runtime.Processor
	p.header = Header{
		Node: processor.Name,
		Client: Client{
			Name:           processor.Client.Name,
			Version:        processor.Client.Version,
			Implementation: processor.Ethereum.Implementation,
		},
		Network: Network{
			Name:        processor.Ethereum.Network.Name,
			ID:          processor.Ethereum.Network.ID,
			GenesisTime: processor.Ethereum.GenesisTime,
		},
		NTPServer: processor.NTPServer,
	}
	p.exporters = exporters
	p.running = true

	p.logger.Info("sink processor started",
		"node", processor.Name,
		"network", processor.Ethereum.Network.Name,
		"outputs", len(exporters),
	)
	return nil
}

func (p *Processor) newExporter(outputConfig config.Output) (*exporter, error) {
	format, err := codec.ParseFormat(outputConfig.Config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", outputConfig.Name, err)
	}
	compression, err := codec.ParseCompression(outputConfig.Config.Compression)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", outputConfig.Name, err)
	}
	built, err := p.newOutput(outputConfig, output.Options{Logger: p.logger})
	if err != nil {
		return nil, err
	}
	return &exporter{
		output:      built,
		format:      format,
		compression: compression,
		settings:    outputConfig.Config.Settings(),
		logger:      p.logger.With("output", outputConfig.Name),
		metrics:     p.metrics,
	}, nil
}

// SendEventBatch decodes payload and exports it to every output
// concurrently. A rejection by any output yields StatusSendRejected;
// any other output failure yields StatusSendFailed.
func (p *Processor) SendEventBatch(ctx context.Context, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return Errorf(StatusSendNotInitialized, "processor not initialized")
	}

	events, err := event.DecodeBatch(codec.FormatJSON, payload)
	if err != nil {
		return &Error{Status: StatusSendParse, Err: err}
	}
	if len(events) == 0 {
		return nil
	}

	header := p.header
	header.SentAtMillis = p.clock.Now().UnixMilli()

	fanout := pool.New().WithErrors()
	for _, target := range p.exporters {
		fanout.Go(func() error {
			return target.export(ctx, header, events)
		})
	}
	if err := fanout.Wait(); err != nil {
		if errors.Is(err, output.ErrRejected) {
			return &Error{Status: StatusSendRejected, Err: err}
		}
		return &Error{Status: StatusSendFailed, Err: err}
	}
	return nil
}

// Shutdown stops every output. Only the first call has any effect.
func (p *Processor) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.stopExporters(p.exporters)
		p.exporters = nil
		p.running = false
		p.logger.Info("sink processor stopped")
	})
}

func (p *Processor) stopExporters(exporters []*exporter) {
	for _, target := range exporters {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := target.output.Stop(ctx); err != nil {
			p.logger.Warn("stopping output failed", "output", target.output.Name(), "error", err)
		}
		cancel()
	}
}

// exporter applies one output's queue cap, chunking, encoding, and
// timeouts.
type exporter struct {
	output      output.Output
	format      codec.Format
	compression codec.Compression
	settings    config.OutputSettings
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// export sends events in chunks of MaxExportBatchSize using up to
// Workers goroutines. Events beyond MaxQueueSize are dropped.
func (e *exporter) export(ctx context.Context, header Header, events []event.Event) error {
	name := e.output.Name()
	if excess := len(events) - e.settings.MaxQueueSize; excess > 0 {
		e.metrics.OutputDropped.WithLabelValues(name).Add(float64(excess))
		e.logger.Warn("batch exceeds output queue size, dropping excess",
			"batch_size", len(events),
			"max_queue_size", e.settings.MaxQueueSize,
			"dropped", excess,
		)
		events = events[:e.settings.MaxQueueSize]
	}

	workers := pool.New().WithErrors().WithMaxGoroutines(e.settings.Workers)
	for start := 0; start < len(events); start += e.settings.MaxExportBatchSize {
		end := min(start+e.settings.MaxExportBatchSize, len(events))
		chunk := events[start:end]
		workers.Go(func() error {
			return e.exportChunk(ctx, header, chunk)
		})
	}
	if err := workers.Wait(); err != nil {
		return fmt.Errorf("output %q: %w", name, err)
	}
	return nil
}

func (e *exporter) exportChunk(ctx context.Context, header Header, chunk []event.Event) error {
	name := e.output.Name()
	encoded, err := e.format.Marshal(Envelope{Header: header, Events: chunk})
	if err != nil {
		e.metrics.OutputExports.WithLabelValues(name, resultError).Inc()
		return fmt.Errorf("encoding envelope: %w", err)
	}
	compressed, err := e.compression.Compress(encoded)
	if err != nil {
		e.metrics.OutputExports.WithLabelValues(name, resultError).Inc()
		return fmt.Errorf("compressing envelope: %w", err)
	}
	batch := output.Batch{
		Digest:      codec.Digest(encoded),
		Events:      len(chunk),
		Format:      e.format,
		Compression: e.compression,
		Payload:     compressed,
	}

	exportContext, cancel := context.WithTimeout(ctx, e.settings.ExportTimeout)
	defer cancel()
	if err := e.output.Export(exportContext, batch); err != nil {
		result := resultError
		if errors.Is(err, output.ErrRejected) {
			result = resultRejected
		}
		e.metrics.OutputExports.WithLabelValues(name, result).Inc()
		e.logger.Warn("export failed",
			"events", len(chunk),
			"digest", batch.Digest,
			"error", err,
		)
		return err
	}
	e.metrics.OutputExports.WithLabelValues(name, resultOK).Inc()
	e.logger.Debug("exported chunk", "events", len(chunk), "digest", batch.Digest)
	return nil
}
