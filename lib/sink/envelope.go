// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"errors"
	"fmt"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/event"
)

// Header identifies the node and network an envelope came from.
type Header struct {
	// Node is the configured processor name.
	Node string `json:"node"`

	Client  Client  `json:"client"`
	Network Network `json:"network"`

	// NTPServer is the time source the collector may use to correct
	// the node's clock skew.
	NTPServer string `json:"ntp_server,omitempty"`

	// SentAtMillis is when the processor exported the envelope, in
	// Unix milliseconds.
	SentAtMillis int64 `json:"sent_at_ms"`
}

// Client identifies the host client build.
type Client struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Implementation string `json:"implementation,omitempty"`
}

// Network identifies the chain.
type Network struct {
	Name        string `json:"name"`
	ID          uint64 `json:"id"`
	GenesisTime uint64 `json:"genesis_time"`
}

// Envelope is one exported chunk: the header plus events in arrival
// order.
type Envelope struct {
	Header
	Events []event.Event `json:"events"`
}

// DecodeEnvelope decodes an envelope encoded in format. Events are
// dispatched on their event_type.
func DecodeEnvelope(format codec.Format, data []byte) (*Envelope, error) {
	fields, err := format.SplitObject(data)
	if err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	envelope := &Envelope{}
	if err := format.Unmarshal(data, &envelope.Header); err != nil {
		return nil, fmt.Errorf("decoding envelope header: %w", err)
	}
	rawEvents, ok := fields["events"]
	if !ok {
		return nil, errors.New("decoding envelope: no events field")
	}
	envelope.Events, err = event.DecodeBatch(format, rawEvents)
	if err != nil {
		return nil, err
	}
	return envelope, nil
}
