// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"crypto/sha256"
	"encoding/binary"
)

// HashTreeRoot returns the SSZ hash-tree-root of the header: the
// five fields packed as 32-byte chunks, padded to eight leaves, and
// merkleized with SHA-256.
func (h *BeaconBlockHeader) HashTreeRoot() Root {
	leaves := [8][32]byte{
		uint64Chunk(h.Slot),
		uint64Chunk(h.ProposerIndex),
		h.ParentRoot,
		h.StateRoot,
		h.BodyRoot,
	}
	return merkleize(leaves[:])
}

// Root returns the block root, which is the root of its header.
func (b *BeaconBlock) Root() Root {
	header := b.Header()
	return header.HashTreeRoot()
}

// uint64Chunk packs v little-endian into a zero-padded chunk.
func uint64Chunk(v uint64) [32]byte {
	var chunk [32]byte
	binary.LittleEndian.PutUint64(chunk[:8], v)
	return chunk
}

// merkleize reduces a power-of-two number of leaves to a root.
func merkleize(leaves [][32]byte) Root {
	layer := leaves
	for len(layer) > 1 {
		next := make([][32]byte, len(layer)/2)
		for i := range next {
			var pair [64]byte
			copy(pair[:32], layer[2*i][:])
			copy(pair[32:], layer[2*i+1][:])
			next[i] = sha256.Sum256(pair[:])
		}
		layer = next
	}
	return layer[0]
}
