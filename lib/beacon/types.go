// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

// Struct tags follow the beacon node REST API JSON shape: integers are
// decimal strings, byte fields are 0x-prefixed hex. Recorded gossip
// fixtures decode directly into these types.

// BeaconBlockHeader summarizes a block by the roots of its parts.
type BeaconBlockHeader struct {
	Slot          uint64 `json:"slot,string"`
	ProposerIndex uint64 `json:"proposer_index,string"`
	ParentRoot    Root   `json:"parent_root"`
	StateRoot     Root   `json:"state_root"`
	BodyRoot      Root   `json:"body_root"`
}

// SignedBeaconBlockHeader is a header with the proposer's signature,
// as embedded in sidecars.
type SignedBeaconBlockHeader struct {
	Message   BeaconBlockHeader `json:"message"`
	Signature Signature         `json:"signature"`
}

// BeaconBlock is a block with its body represented by the body's
// hash-tree-root. The root of a block equals the root of its header,
// so nothing else of the body is needed.
type BeaconBlock struct {
	Slot          uint64 `json:"slot,string"`
	ProposerIndex uint64 `json:"proposer_index,string"`
	ParentRoot    Root   `json:"parent_root"`
	StateRoot     Root   `json:"state_root"`
	BodyRoot      Root   `json:"body_root"`
}

// Header returns the block's header.
func (b *BeaconBlock) Header() BeaconBlockHeader {
	return BeaconBlockHeader{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    b.ParentRoot,
		StateRoot:     b.StateRoot,
		BodyRoot:      b.BodyRoot,
	}
}

// SignedBeaconBlock is a gossiped block.
type SignedBeaconBlock struct {
	Message   BeaconBlock `json:"message"`
	Signature Signature   `json:"signature"`
}

// Checkpoint is an (epoch, root) pair used for FFG source and target.
type Checkpoint struct {
	Epoch uint64 `json:"epoch,string"`
	Root  Root   `json:"root"`
}

// AttestationData is the vote an attestation signs.
type AttestationData struct {
	Slot            uint64     `json:"slot,string"`
	Index           uint64     `json:"index,string"`
	BeaconBlockRoot Root       `json:"beacon_block_root"`
	Source          Checkpoint `json:"source"`
	Target          Checkpoint `json:"target"`
}

// SingleAttestation is the unaggregated attestation gossiped on
// attestation subnets. It names its attester directly instead of
// carrying an aggregation bitfield.
type SingleAttestation struct {
	CommitteeIndex uint64          `json:"committee_index,string"`
	AttesterIndex  uint64          `json:"attester_index,string"`
	Data           AttestationData `json:"data"`
	Signature      Signature       `json:"signature"`
}

// Attestation is an aggregate attestation. CommitteeBits is empty
// before Electra, when the committee is identified by Data.Index.
type Attestation struct {
	AggregationBits Bitfield        `json:"aggregation_bits"`
	Data            AttestationData `json:"data"`
	Signature       Signature       `json:"signature"`
	CommitteeBits   Bitfield        `json:"committee_bits,omitempty"`
}

// CommitteeIndex returns the first committee named by CommitteeBits,
// falling back to Data.Index for pre-Electra attestations.
func (a *Attestation) CommitteeIndex() uint64 {
	if index, ok := a.CommitteeBits.FirstSetBit(); ok {
		return index
	}
	return a.Data.Index
}

// AggregateAndProof wraps an aggregate with the aggregator's identity.
type AggregateAndProof struct {
	AggregatorIndex uint64      `json:"aggregator_index,string"`
	Aggregate       Attestation `json:"aggregate"`
	SelectionProof  Signature   `json:"selection_proof"`
}

// SignedAggregateAndProof is the message on the aggregate topic.
type SignedAggregateAndProof struct {
	Message   AggregateAndProof `json:"message"`
	Signature Signature         `json:"signature"`
}

// KZGCommitment is a 48-byte polynomial commitment.
type KZGCommitment [48]byte

// MarshalText encodes the commitment as 0x-prefixed hex.
func (c KZGCommitment) MarshalText() ([]byte, error) { return []byte(PrefixedHex(c[:])), nil }

// UnmarshalText parses 0x-prefixed hex.
func (c *KZGCommitment) UnmarshalText(text []byte) error {
	return decodeFixed(c[:], string(text))
}

// BlobSidecar carries one blob of a block. The blob and its proof are
// omitted.
type BlobSidecar struct {
	Index             uint64                  `json:"index,string"`
	KZGCommitment     KZGCommitment           `json:"kzg_commitment"`
	SignedBlockHeader SignedBeaconBlockHeader `json:"signed_block_header"`
}

// DataColumnSidecar carries one column of extended blob data. Cells and
// proofs are omitted.
type DataColumnSidecar struct {
	Index             uint64                  `json:"index,string"`
	KZGCommitments    []KZGCommitment         `json:"kzg_commitments"`
	SignedBlockHeader SignedBeaconBlockHeader `json:"signed_block_header"`
}
