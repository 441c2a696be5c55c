// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink defines the boundary between the delivery bridge and
// whatever transmits batches off the host, and provides Processor, the
// in-process implementation that exports to configured outputs.
//
// The boundary is a YAML configuration document at
// initialization, then opaque JSON event arrays. Failures carry a
// numeric Status so a sink implemented out of process can report them
// through a plain integer.
package sink

import (
	"context"
	"errors"
	"fmt"
)

// Sink receives event batches from the delivery bridge. The bridge
// serializes every call, so implementations need not be safe for
// concurrent use by the bridge itself.
type Sink interface {
	// Init parses config (a YAML runtime configuration document) and
	// brings the sink up. Failures are *Error with an init status.
	Init(ctx context.Context, config []byte) error

	// SendEventBatch transmits payload, a JSON array of tagged events.
	// Failures are *Error with a send status.
	SendEventBatch(ctx context.Context, payload []byte) error

	// Shutdown releases the sink. Best effort; it reports nothing.
	Shutdown()
}

// Status is a sink result code. Zero is success; init and send
// failures use overlapping negative ranges.
type Status int

// StatusOK is success for every call.
const StatusOK Status = 0

// Init status codes.
const (
	StatusInitParse     Status = -1
	StatusInitConstruct Status = -2
	StatusInitStart     Status = -3
	StatusInitNetwork   Status = -4
)

// Send status codes.
const (
	StatusSendNotInitialized Status = -1
	StatusSendParse          Status = -2
	StatusSendFailed         Status = -3
	StatusSendRejected       Status = -4
)

// Error is a sink failure with its status code.
type Error struct {
	Status Status
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sink status %d", e.Status)
	}
	return fmt.Sprintf("sink status %d: %v", e.Status, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted cause.
func Errorf(status Status, format string, args ...any) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

// StatusOf extracts the status from err. It returns StatusOK for nil
// and false when err carries no status.
func StatusOf(err error) (Status, bool) {
	if err == nil {
		return StatusOK, true
	}
	var sinkError *Error
	if errors.As(err, &sinkError) {
		return sinkError.Status, true
	}
	return 0, false
}
