// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package observer

import (
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/gossipwatch/gossipwatch/lib/beacon"
	"github.com/gossipwatch/gossipwatch/lib/event"
	"github.com/gossipwatch/gossipwatch/lib/ingress"
	"github.com/gossipwatch/gossipwatch/lib/metrics"
)

// Message describes the gossipsub envelope a notification arrived in.
type Message struct {
	// ID is the raw gossipsub message id.
	ID []byte

	PeerID string

	// Client is the remote peer's client implementation, if known.
	Client string

	Topic string

	// Size is the message size in bytes on the wire.
	Size int

	// ArrivedAt is when the message was received. Zero means now.
	ArrivedAt time.Time
}

// OnGossipBlock records a gossiped block.
func (o *Observer) OnGossipBlock(msg Message, block *beacon.SignedBeaconBlock) error {
	if o == nil || !o.present(event.KindBeaconBlock, block != nil) || !o.accepting(event.KindBeaconBlock) {
		return nil
	}
	meta, err := o.metadata(msg, block.Message.Slot)
	if err != nil {
		return err
	}
	o.enqueue(event.NewBeaconBlock(meta, block.Message.Root().String(), block.Message.ProposerIndex))
	return nil
}

// OnGossipAttestation records an unaggregated attestation received on
// subnet. shouldProcess is the host's validation verdict.
func (o *Observer) OnGossipAttestation(msg Message, attestation *beacon.SingleAttestation, subnet uint64, shouldProcess bool) error {
	if o == nil || !o.present(event.KindAttestation, attestation != nil) || !o.accepting(event.KindAttestation) {
		return nil
	}
	meta, err := o.metadata(msg, attestation.Data.Slot)
	if err != nil {
		return err
	}
	o.enqueue(event.NewAttestation(meta, event.Attestation{
		Vote:            voteOf(attestation.Data),
		SubnetID:        subnet,
		ShouldProcess:   shouldProcess,
		CommitteeIndex:  attestation.CommitteeIndex,
		AggregationBits: beacon.Bitfield(nil).String(),
		Signature:       attestation.Signature.String(),
		AttesterIndex:   attestation.AttesterIndex,
	}))
	return nil
}

// OnGossipAggregateAndProof records a gossiped aggregate. The recorded
// signature is the aggregator's signature over the whole message.
func (o *Observer) OnGossipAggregateAndProof(msg Message, signed *beacon.SignedAggregateAndProof) error {
	if o == nil || !o.present(event.KindAggregateAndProof, signed != nil) || !o.accepting(event.KindAggregateAndProof) {
		return nil
	}
	aggregate := &signed.Message.Aggregate
	meta, err := o.metadata(msg, aggregate.Data.Slot)
	if err != nil {
		return err
	}
	o.enqueue(event.NewAggregateAndProof(meta, event.AggregateAndProof{
		Vote:            voteOf(aggregate.Data),
		AggregatorIndex: signed.Message.AggregatorIndex,
		CommitteeIndex:  aggregate.CommitteeIndex(),
		AggregationBits: aggregate.AggregationBits.String(),
		Signature:       signed.Signature.String(),
	}))
	return nil
}

// OnGossipBlobSidecar records the blob sidecar at blobIndex.
func (o *Observer) OnGossipBlobSidecar(msg Message, blobIndex uint64, sidecar *beacon.BlobSidecar) error {
	if o == nil || !o.present(event.KindBlobSidecar, sidecar != nil) || !o.accepting(event.KindBlobSidecar) {
		return nil
	}
	header := &sidecar.SignedBlockHeader.Message
	meta, err := o.metadata(msg, header.Slot)
	if err != nil {
		return err
	}
	o.enqueue(event.NewBlobSidecar(meta, blockSummary(header), blobIndex))
	return nil
}

// OnGossipDataColumnSidecar records a data column sidecar received on
// subnet. The subnet is not part of the record.
func (o *Observer) OnGossipDataColumnSidecar(msg Message, subnet uint64, sidecar *beacon.DataColumnSidecar) error {
	if o == nil || !o.present(event.KindDataColumnSidecar, sidecar != nil) || !o.accepting(event.KindDataColumnSidecar) {
		return nil
	}
	header := &sidecar.SignedBlockHeader.Message
	meta, err := o.metadata(msg, header.Slot)
	if err != nil {
		return err
	}
	commitments := clampUint32(len(sidecar.KZGCommitments))
	o.enqueue(event.NewDataColumnSidecar(meta, blockSummary(header), sidecar.Index, commitments))
	o.logger.Debug("data column sidecar observed", "column_index", sidecar.Index, "subnet", subnet)
	return nil
}

// present drops a notification that arrived without its consensus
// object.
func (o *Observer) present(kind event.Kind, ok bool) bool {
	if ok {
		return true
	}
	o.metrics.EventsDropped.WithLabelValues(kind.Label(), metrics.ReasonMissingObject).Inc()
	o.logger.Debug("notification without a consensus object, dropping", "event_type", kind.Label())
	return false
}

// accepting reports whether the bridge is ready. Events offered before
// the sink is initialized, or after shutdown, are dropped.
func (o *Observer) accepting(kind event.Kind) bool {
	if o.bridge.Ready() {
		return true
	}
	o.metrics.EventsDropped.WithLabelValues(kind.Label(), metrics.ReasonNotReady).Inc()
	o.notReadyLog.Do(func() {
		o.logger.Warn("sink not ready, dropping event", "event_type", kind.Label())
	})
	return false
}

// metadata builds the shared fields. The epoch is derived here, once.
func (o *Observer) metadata(msg Message, slot uint64) (event.Metadata, error) {
	if o.network == nil || o.network.SlotsPerEpoch == 0 {
		return event.Metadata{}, ErrNetworkInfoUnavailable
	}
	arrived := msg.ArrivedAt
	if arrived.IsZero() {
		arrived = o.clock.Now()
	}
	return event.Metadata{
		PeerID:          msg.PeerID,
		MessageID:       hex.EncodeToString(msg.ID),
		Topic:           msg.Topic,
		MessageSize:     clampUint32(msg.Size),
		TimestampMillis: arrived.UnixMilli(),
		Slot:            slot,
		Epoch:           o.network.EpochAtSlot(slot),
		Client:          msg.Client,
	}, nil
}

// enqueue offers record to the queue without blocking.
func (o *Observer) enqueue(record event.Event) {
	label := record.Kind().Label()
	err := o.queue.TrySend(record)
	if err == nil {
		o.metrics.EventsEnqueued.WithLabelValues(label).Inc()
		return
	}

	reason := metrics.ReasonClosed
	if errors.Is(err, ingress.ErrFull) {
		reason = metrics.ReasonQueueFull
	}
	o.metrics.EventsDropped.WithLabelValues(label, reason).Inc()
	o.dropLog.Do(func() {
		o.logger.Warn("dropping event",
			"event_type", label,
			"reason", reason,
			"queue_capacity", o.queue.Cap(),
		)
	})
}

func voteOf(data beacon.AttestationData) event.Vote {
	return event.Vote{
		AttestationDataRoot: data.BeaconBlockRoot.String(),
		SourceEpoch:         data.Source.Epoch,
		SourceRoot:          data.Source.Root.String(),
		TargetEpoch:         data.Target.Epoch,
		TargetRoot:          data.Target.Root.String(),
	}
}

func blockSummary(header *beacon.BeaconBlockHeader) event.BlockSummary {
	return event.BlockSummary{
		BlockRoot:     header.HashTreeRoot().String(),
		ParentRoot:    header.ParentRoot.String(),
		StateRoot:     header.StateRoot.String(),
		ProposerIndex: header.ProposerIndex,
	}
}

func clampUint32(n int) uint32 {
	switch {
	case n < 0:
		return 0
	case uint64(n) > math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(n)
}
