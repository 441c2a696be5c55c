// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package beacon defines the consensus objects a host client hands to
// the observer and the network context used to derive epochs.
//
// The types carry only the fields gossip telemetry reads: slots,
// indices, roots, signatures, and bitfields. Large payloads (block
// bodies, blobs, cells, proofs) are represented by their roots or
// counts, never copied.
//
// This package depends on no other Gossipwatch packages.
package beacon
