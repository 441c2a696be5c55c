// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gossipwatch/gossipwatch/lib/beacon"
	"github.com/gossipwatch/gossipwatch/lib/clock"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/observer"
)

// maxLineSize bounds one recorded notification.
const maxLineSize = 16 << 20

// errMalformed marks a line that cannot be replayed. Such lines are
// skipped.
var errMalformed = errors.New("malformed notification")

// gossipObserver is the surface replay drives. *observer.Observer
// implements it.
type gossipObserver interface {
	OnGossipBlock(observer.Message, *beacon.SignedBeaconBlock) error
	OnGossipAttestation(observer.Message, *beacon.SingleAttestation, uint64, bool) error
	OnGossipAggregateAndProof(observer.Message, *beacon.SignedAggregateAndProof) error
	OnGossipBlobSidecar(observer.Message, uint64, *beacon.BlobSidecar) error
	OnGossipDataColumnSidecar(observer.Message, uint64, *beacon.DataColumnSidecar) error
}

// Notification is one recorded gossip message. Payload holds the
// message in beacon API JSON form; its shape depends on Kind.
type Notification struct {
	// Kind is the event label: beacon_block, attestation,
	// aggregate_and_proof, blob_sidecar, or data_column_sidecar.
	Kind string `json:"kind"`

	PeerID    string `json:"peer_id"`
	MessageID string `json:"message_id"`
	Client    string `json:"client,omitempty"`
	Topic     string `json:"topic"`
	Size      int    `json:"size"`

	// ArrivedAtMillis is the recorded arrival in Unix milliseconds.
	ArrivedAtMillis int64 `json:"arrived_at_ms,omitempty"`

	// Subnet applies to attestations and data column sidecars.
	Subnet uint64 `json:"subnet,omitempty"`

	// ShouldProcess applies to attestations. Absent means true.
	ShouldProcess *bool `json:"should_process,omitempty"`

	// BlobIndex applies to blob sidecars.
	BlobIndex uint64 `json:"blob_index,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

func (n *Notification) message() (observer.Message, error) {
	id, err := hex.DecodeString(strings.TrimPrefix(n.MessageID, "0x"))
	if err != nil {
		return observer.Message{}, fmt.Errorf("%w: message_id: %v", errMalformed, err)
	}
	msg := observer.Message{
		ID:     id,
		PeerID: n.PeerID,
		Client: n.Client,
		Topic:  n.Topic,
		Size:   n.Size,
	}
	if n.ArrivedAtMillis > 0 {
		msg.ArrivedAt = time.UnixMilli(n.ArrivedAtMillis)
	}
	return msg, nil
}

// dispatch hands n to target. Decoding failures wrap errMalformed;
// anything else comes from target.
func (n *Notification) dispatch(target gossipObserver) error {
	msg, err := n.message()
	if err != nil {
		return err
	}
	switch n.Kind {
	case event.KindBeaconBlock.Label():
		var block beacon.SignedBeaconBlock
		if err := decodePayload(n.Payload, &block); err != nil {
			return err
		}
		return target.OnGossipBlock(msg, &block)

	case event.KindAttestation.Label():
		var attestation beacon.SingleAttestation
		if err := decodePayload(n.Payload, &attestation); err != nil {
			return err
		}
		shouldProcess := n.ShouldProcess == nil || *n.ShouldProcess
		return target.OnGossipAttestation(msg, &attestation, n.Subnet, shouldProcess)

	case event.KindAggregateAndProof.Label():
		var aggregate beacon.SignedAggregateAndProof
		if err := decodePayload(n.Payload, &aggregate); err != nil {
			return err
		}
		return target.OnGossipAggregateAndProof(msg, &aggregate)

	case event.KindBlobSidecar.Label():
		var sidecar beacon.BlobSidecar
		if err := decodePayload(n.Payload, &sidecar); err != nil {
			return err
		}
		return target.OnGossipBlobSidecar(msg, n.BlobIndex, &sidecar)

	case event.KindDataColumnSidecar.Label():
		var sidecar beacon.DataColumnSidecar
		if err := decodePayload(n.Payload, &sidecar); err != nil {
			return err
		}
		return target.OnGossipDataColumnSidecar(msg, n.Subnet, &sidecar)

	default:
		return fmt.Errorf("%w: unknown kind %q", errMalformed, n.Kind)
	}
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: no payload", errMalformed)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: payload: %v", errMalformed, err)
	}
	return nil
}

// replayStats summarizes a replay.
type replayStats struct {
	Lines    int
	Replayed int
	Skipped  int
	ByKind   map[string]int
}

// replayer feeds recorded notifications to an observer.
type replayer struct {
	target gossipObserver
	clock  clock.Clock
	logger *slog.Logger

	// pace sleeps between notifications for their recorded gap.
	pace bool
}

// run reads JSON lines from r until EOF or ctx is done. Malformed
// lines are logged and skipped; an observer error stops the replay.
func (p *replayer) run(ctx context.Context, r io.Reader) (replayStats, error) {
	stats := replayStats{ByKind: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)

	var previousArrival int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var notification Notification
		if err := json.Unmarshal(line, &notification); err != nil {
			stats.Skipped++
			p.logger.Warn("skipping unparseable line", "line", stats.Lines, "error", err)
			continue
		}

		if p.pace && previousArrival > 0 && notification.ArrivedAtMillis > previousArrival {
			gap := time.Duration(notification.ArrivedAtMillis-previousArrival) * time.Millisecond
			select {
			case <-p.clock.After(gap):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
		if notification.ArrivedAtMillis > 0 {
			previousArrival = notification.ArrivedAtMillis
		}

		if err := notification.dispatch(p.target); err != nil {
			if errors.Is(err, errMalformed) {
				stats.Skipped++
				p.logger.Warn("skipping notification", "line", stats.Lines, "kind", notification.Kind, "error", err)
				continue
			}
			return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
		}
		stats.Replayed++
		stats.ByKind[notification.Kind]++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading input: %w", err)
	}
	return stats, nil
}
