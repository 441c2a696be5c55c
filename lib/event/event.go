// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "fmt"

// Kind is the event_type discriminator.
type Kind string

const (
	KindBeaconBlock       Kind = "BEACON_BLOCK"
	KindAttestation       Kind = "ATTESTATION"
	KindAggregateAndProof Kind = "AGGREGATE_AND_PROOF"
	KindBlobSidecar       Kind = "BLOB_SIDECAR"
	KindDataColumnSidecar Kind = "DATA_COLUMN_SIDECAR"
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{
	KindBeaconBlock,
	KindAttestation,
	KindAggregateAndProof,
	KindBlobSidecar,
	KindDataColumnSidecar,
}

// Label returns the lowercase form used in metric labels.
func (k Kind) Label() string {
	switch k {
	case KindBeaconBlock:
		return "beacon_block"
	case KindAttestation:
		return "attestation"
	case KindAggregateAndProof:
		return "aggregate_and_proof"
	case KindBlobSidecar:
		return "blob_sidecar"
	case KindDataColumnSidecar:
		return "data_column_sidecar"
	default:
		return "unknown"
	}
}

// Event is one gossip telemetry record.
type Event interface {
	// Kind returns the variant discriminator.
	Kind() Kind

	// Meta returns the fields shared by every variant.
	Meta() Metadata
}

// Metadata holds the fields every gossip record carries.
type Metadata struct {
	// Type is the event_type discriminator. Set by the constructors;
	// always equal to Kind().
	Type Kind `json:"event_type"`

	PeerID string `json:"peer_id"`

	// MessageID is the gossipsub message id as lowercase hex without
	// a 0x prefix.
	MessageID string `json:"message_id"`

	Topic       string `json:"topic"`
	MessageSize uint32 `json:"message_size"`

	// TimestampMillis is the arrival time in Unix milliseconds.
	TimestampMillis int64 `json:"timestamp_ms"`

	Slot uint64 `json:"slot"`

	// Epoch is derived from Slot when the record is built and never
	// recomputed.
	Epoch uint64 `json:"epoch"`

	// Client is the remote peer's client implementation, when known.
	Client string `json:"client,omitempty"`
}

// Meta returns m. Promoted to every variant.
func (m Metadata) Meta() Metadata { return m }

// BeaconBlock records a gossiped block.
type BeaconBlock struct {
	Metadata
	BlockRoot     string `json:"block_root"`
	ProposerIndex uint64 `json:"proposer_index"`
}

// Kind implements Event.
func (*BeaconBlock) Kind() Kind { return KindBeaconBlock }

// NewBeaconBlock stamps meta with the block discriminator.
func NewBeaconBlock(meta Metadata, blockRoot string, proposerIndex uint64) *BeaconBlock {
	meta.Type = KindBeaconBlock
	return &BeaconBlock{Metadata: meta, BlockRoot: blockRoot, ProposerIndex: proposerIndex}
}

// Vote holds the FFG fields shared by attestations and aggregates.
type Vote struct {
	// AttestationDataRoot is the head block root the vote names.
	AttestationDataRoot string `json:"attestation_data_root"`
	SourceEpoch         uint64 `json:"source_epoch"`
	SourceRoot          string `json:"source_root"`
	TargetEpoch         uint64 `json:"target_epoch"`
	TargetRoot          string `json:"target_root"`
}

// Attestation records an unaggregated attestation seen on a subnet.
type Attestation struct {
	Metadata
	Vote
	SubnetID       uint64 `json:"subnet_id"`
	ShouldProcess  bool   `json:"should_process"`
	CommitteeIndex uint64 `json:"committee_index"`

	// AggregationBits is "0x" for single attestations, which carry no
	// bitfield.
	AggregationBits string `json:"aggregation_bits"`
	Signature       string `json:"signature"`
	AttesterIndex   uint64 `json:"attester_index"`
}

// Kind implements Event.
func (*Attestation) Kind() Kind { return KindAttestation }

// NewAttestation stamps meta with the attestation discriminator.
func NewAttestation(meta Metadata, attestation Attestation) *Attestation {
	attestation.Metadata = meta
	attestation.Type = KindAttestation
	return &attestation
}

// AggregateAndProof records a gossiped aggregate.
type AggregateAndProof struct {
	Metadata
	Vote
	AggregatorIndex uint64 `json:"aggregator_index"`
	CommitteeIndex  uint64 `json:"committee_index"`
	AggregationBits string `json:"aggregation_bits"`
	Signature       string `json:"signature"`
}

// Kind implements Event.
func (*AggregateAndProof) Kind() Kind { return KindAggregateAndProof }

// NewAggregateAndProof stamps meta with the aggregate discriminator.
func NewAggregateAndProof(meta Metadata, aggregate AggregateAndProof) *AggregateAndProof {
	aggregate.Metadata = meta
	aggregate.Type = KindAggregateAndProof
	return &aggregate
}

// BlockSummary identifies the block a sidecar belongs to.
type BlockSummary struct {
	BlockRoot     string `json:"block_root"`
	ParentRoot    string `json:"parent_root"`
	StateRoot     string `json:"state_root"`
	ProposerIndex uint64 `json:"proposer_index"`
}

// BlobSidecar records a gossiped blob sidecar.
type BlobSidecar struct {
	Metadata
	BlockSummary
	BlobIndex uint64 `json:"blob_index"`
}

// Kind implements Event.
func (*BlobSidecar) Kind() Kind { return KindBlobSidecar }

// NewBlobSidecar stamps meta with the blob sidecar discriminator.
func NewBlobSidecar(meta Metadata, block BlockSummary, blobIndex uint64) *BlobSidecar {
	meta.Type = KindBlobSidecar
	return &BlobSidecar{Metadata: meta, BlockSummary: block, BlobIndex: blobIndex}
}

// DataColumnSidecar records a gossiped data column sidecar.
type DataColumnSidecar struct {
	Metadata
	BlockSummary
	ColumnIndex         uint64 `json:"column_index"`
	KZGCommitmentsCount uint32 `json:"kzg_commitments_count"`
}

// Kind implements Event.
func (*DataColumnSidecar) Kind() Kind { return KindDataColumnSidecar }

// NewDataColumnSidecar stamps meta with the data column discriminator.
func NewDataColumnSidecar(meta Metadata, block BlockSummary, columnIndex uint64, commitments uint32) *DataColumnSidecar {
	meta.Type = KindDataColumnSidecar
	return &DataColumnSidecar{
		Metadata:            meta,
		BlockSummary:        block,
		ColumnIndex:         columnIndex,
		KZGCommitmentsCount: commitments,
	}
}

// newForKind returns an empty record for a discriminator.
func newForKind(kind Kind) (Event, error) {
	switch kind {
	case KindBeaconBlock:
		return &BeaconBlock{}, nil
	case KindAttestation:
		return &Attestation{}, nil
	case KindAggregateAndProof:
		return &AggregateAndProof{}, nil
	case KindBlobSidecar:
		return &BlobSidecar{}, nil
	case KindDataColumnSidecar:
		return &DataColumnSidecar{}, nil
	default:
		return nil, fmt.Errorf("unknown event_type %q", kind)
	}
}
