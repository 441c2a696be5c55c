// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Root is a 32-byte SSZ hash-tree-root.
type Root [32]byte

// String returns the root as 0x-prefixed lowercase hex.
func (r Root) String() string { return PrefixedHex(r[:]) }

// MarshalText encodes the root as 0x-prefixed hex.
func (r Root) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses 0x-prefixed hex.
func (r *Root) UnmarshalText(text []byte) error {
	return decodeFixed(r[:], string(text))
}

// Signature is a 96-byte BLS signature.
type Signature [96]byte

// String returns the signature as 0x-prefixed lowercase hex.
func (s Signature) String() string { return PrefixedHex(s[:]) }

// MarshalText encodes the signature as 0x-prefixed hex.
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses 0x-prefixed hex.
func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(s[:], string(text))
}

// Bitfield is an SSZ bitlist or bitvector in its serialized byte form.
type Bitfield []byte

// String returns the serialized bytes as 0x-prefixed hex. An empty
// bitfield is "0x".
func (b Bitfield) String() string { return PrefixedHex(b) }

// MarshalText encodes the bitfield as 0x-prefixed hex.
func (b Bitfield) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText parses 0x-prefixed hex.
func (b *Bitfield) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return fmt.Errorf("bitfield: %w", err)
	}
	*b = decoded
	return nil
}

// FirstSetBit returns the index of the lowest set bit, using SSZ's
// little-endian bit order within each byte, or false when no bit is set.
func (b Bitfield) FirstSetBit() (uint64, bool) {
	for byteIndex, value := range b {
		if value == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if value&(1<<bit) != 0 {
				return uint64(byteIndex*8 + bit), true
			}
		}
	}
	return 0, false
}

// PrefixedHex returns data as 0x-prefixed lowercase hex.
func PrefixedHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func decodeFixed(destination []byte, text string) error {
	decoded, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return err
	}
	if len(decoded) != len(destination) {
		return fmt.Errorf("expected %d bytes, got %d", len(destination), len(decoded))
	}
	copy(destination, decoded)
	return nil
}
