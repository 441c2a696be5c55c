// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"

	"github.com/gossipwatch/gossipwatch/lib/sink"
)

// InitKind classifies an initialization failure.
type InitKind int

const (
	// InitParseFailed: the runtime configuration could not be encoded
	// or the sink could not parse it.
	InitParseFailed InitKind = iota + 1

	// InitSinkConstructionFailed: an output could not be built.
	InitSinkConstructionFailed

	// InitSinkStartFailed: an output could not be started.
	InitSinkStartFailed

	// InitMissingNetworkInfo: the network block was absent or unusable.
	InitMissingNetworkInfo
)

func (k InitKind) String() string {
	switch k {
	case InitParseFailed:
		return "parse_failed"
	case InitSinkConstructionFailed:
		return "sink_construction_failed"
	case InitSinkStartFailed:
		return "sink_start_failed"
	case InitMissingNetworkInfo:
		return "missing_network_info"
	default:
		return fmt.Sprintf("init_kind(%d)", int(k))
	}
}

// SendKind classifies a batch transmission failure.
type SendKind int

const (
	// SendNotInitialized: the bridge or sink was not initialized.
	SendNotInitialized SendKind = iota + 1

	// SendSerializationFailed: the batch could not be encoded, or the
	// sink could not decode it.
	SendSerializationFailed

	// SendTransmissionFailed: an output could not deliver the batch.
	SendTransmissionFailed

	// SendSinkRejected: a destination received and refused the batch.
	SendSinkRejected
)

func (k SendKind) String() string {
	switch k {
	case SendNotInitialized:
		return "not_initialized"
	case SendSerializationFailed:
		return "serialization_failed"
	case SendTransmissionFailed:
		return "transmission_failed"
	case SendSinkRejected:
		return "sink_rejected"
	default:
		return fmt.Sprintf("send_kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against *InitError and *SendError.
var (
	ErrParseFailed             = errors.New("bridge: config parse failed")
	ErrSinkConstructionFailed  = errors.New("bridge: sink construction failed")
	ErrSinkStartFailed         = errors.New("bridge: sink start failed")
	ErrMissingNetworkInfo      = errors.New("bridge: missing network info")
	ErrNotInitialized          = errors.New("bridge: not initialized")
	ErrSerializationFailed     = errors.New("bridge: batch serialization failed")
	ErrTransmissionFailed      = errors.New("bridge: batch transmission failed")
	ErrSinkRejected            = errors.New("bridge: batch rejected by sink")
	ErrAlreadyInitialized      = errors.New("bridge: already initialized")
	errUnknownInitKindSentinel = errors.New("bridge: init failed")
	errUnknownSendKindSentinel = errors.New("bridge: send failed")
)

// InitError is a failed Initialize.
type InitError struct {
	Kind InitKind
	Err  error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return "bridge: init failed: " + e.Kind.String()
	}
	return fmt.Sprintf("bridge: init failed: %s: %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *InitError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k InitKind) sentinel() error {
	switch k {
	case InitParseFailed:
		return ErrParseFailed
	case InitSinkConstructionFailed:
		return ErrSinkConstructionFailed
	case InitSinkStartFailed:
		return ErrSinkStartFailed
	case InitMissingNetworkInfo:
		return ErrMissingNetworkInfo
	default:
		return errUnknownInitKindSentinel
	}
}

// SendError is a failed SendBatch.
type SendError struct {
	Kind SendKind
	Err  error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return "bridge: send failed: " + e.Kind.String()
	}
	return fmt.Sprintf("bridge: send failed: %s: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *SendError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k SendKind) sentinel() error {
	switch k {
	case SendNotInitialized:
		return ErrNotInitialized
	case SendSerializationFailed:
		return ErrSerializationFailed
	case SendTransmissionFailed:
		return ErrTransmissionFailed
	case SendSinkRejected:
		return ErrSinkRejected
	default:
		return errUnknownSendKindSentinel
	}
}

// initKindFor maps a sink init status to a kind. Unknown statuses are
// treated as start failures.
func initKindFor(status sink.Status) InitKind {
	switch status {
	case sink.StatusInitParse:
		return InitParseFailed
	case sink.StatusInitConstruct:
		return InitSinkConstructionFailed
	case sink.StatusInitNetwork:
		return InitMissingNetworkInfo
	default:
		return InitSinkStartFailed
	}
}

// sendKindFor maps a sink send status to a kind. Unknown statuses are
// treated as transmission failures.
func sendKindFor(status sink.Status) SendKind {
	switch status {
	case sink.StatusSendNotInitialized:
		return SendNotInitialized
	case sink.StatusSendParse:
		return SendSerializationFailed
	case sink.StatusSendRejected:
		return SendSinkRejected
	default:
		return SendTransmissionFailed
	}
}
