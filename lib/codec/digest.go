// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// digestKey separates batch digests from any other BLAKE3 use of the
// same bytes. NewKeyed requires exactly 32 bytes.
var digestKey = [32]byte{
	'g', 'o', 's', 's', 'i', 'p', 'w', 'a', 't', 'c', 'h', '.',
	'b', 'a', 't', 'c', 'h', '.', 'd', 'i', 'g', 'e', 's', 't',
	'.', 'v', '1',
}

// Digest returns the keyed BLAKE3 hash of an encoded batch as 64
// lowercase hex characters. Outputs stamp it on every export so a
// collector can recognize a redelivered chunk.
func Digest(payload []byte) string {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		// Unreachable: the key length is fixed at 32 bytes.
		panic("codec: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(payload)
	return hex.EncodeToString(hasher.Sum(nil))
}
