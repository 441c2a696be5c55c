// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Gossipwatch's serialization, compression, and
// batch digest primitives.
//
// Two encodings are supported, selected per output by [Format]:
//
//   - JSON (github.com/goccy/go-json) is the encoding on the boundary
//     between the delivery bridge and the sink, and the default for
//     collectors.
//   - CBOR (github.com/fxamacker/cbor/v2) with Core Deterministic
//     Encoding (RFC 8949 §4.2) for compact collector payloads. Same
//     logical data always produces identical bytes.
//
// Event types carry `json` struct tags only. fxamacker/cbor reads
// `json` tags when `cbor` tags are absent, so one tag controls field
// naming and omitempty for both formats.
//
// Compressed payloads use zstd or LZ4 frames ([Compression]). Transports
// without message headers wrap payloads in a two-byte [Frame] header
// naming the format and compression. [Digest] identifies an encoded
// batch with keyed BLAKE3 so collectors can discard redeliveries.
package codec
