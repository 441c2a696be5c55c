// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package output implements the destinations the sink processor
// exports encoded batches to: HTTP collectors, websocket streams, NATS
// subjects, and local frame files.
//
// An Output receives batches that are already encoded and compressed.
// It only moves bytes; the processor owns chunking, encoding, and the
// per-output timeouts.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/logging"
)

// ErrRejected marks an export the destination received and refused,
// as opposed to one that never reached it.
var ErrRejected = errors.New("output: batch rejected by destination")

// Output is one export destination.
type Output interface {
	// Name returns the configured output name.
	Name() string

	// Start connects to the destination. Outputs without a persistent
	// connection return nil.
	Start(ctx context.Context) error

	// Export delivers one batch. Implementations are safe for
	// concurrent use by the processor's export workers.
	Export(ctx context.Context, batch Batch) error

	// Stop releases the connection. Export must not be called after
	// Stop.
	Stop(ctx context.Context) error
}

// Batch is one encoded chunk of an envelope.
type Batch struct {
	// Digest is the keyed BLAKE3 digest of the uncompressed payload.
	Digest string

	// Events is the number of events encoded in Payload.
	Events int

	Format      codec.Format
	Compression codec.Compression

	// Payload is the encoded, compressed envelope.
	Payload []byte
}

// Frame returns the batch as a self-describing frame for transports
// without message headers.
func (b Batch) Frame() codec.Frame {
	return codec.Frame{
		Format:      b.Format,
		Compression: b.Compression,
		Payload:     b.Payload,
	}
}

// Options carries dependencies shared by every output.
type Options struct {
	Logger *slog.Logger
}

// constructor builds an output from its configuration.
type constructor func(name string, cfg config.OutputConfig, options Options) (Output, error)

var constructors = map[string]constructor{
	"http":      newHTTP,
	"websocket": newWebsocket,
	"nats":      newNATS,
	"file":      newFile,
}

// New constructs the output named by cfg.Type. It does not connect;
// call Start.
func New(cfg config.Output, options Options) (Output, error) {
	build, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("output %q: unknown type %q", cfg.Name, cfg.Type)
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	options.Logger = options.Logger.With("output", cfg.Name)
	out, err := build(cfg.Name, cfg.Config, options)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", cfg.Name, err)
	}
	return out, nil
}

// endpoint parses address, supplying a scheme when it has none. A
// bare host:port gets secure when tls is set and plain otherwise.
func endpoint(address, plain, secure string, tls bool) (*url.URL, error) {
	if !strings.Contains(address, "://") {
		scheme := plain
		if tls {
			scheme = secure
		}
		address = scheme + "://" + address
	}
	parsed, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("address %q has no host", address)
	}
	return parsed, nil
}
