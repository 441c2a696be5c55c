// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses Core Deterministic Encoding: sorted map keys,
// smallest integer encoding, no indefinite-length items.
var cborEncMode cbor.EncMode

// cborDecMode accepts standard CBOR. Unknown fields are ignored so
// collectors tolerate newer event fields.
var cborDecMode cbor.DecMode

func init() {
	var err error

	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	cborDecMode, err = cbor.DecOptions{
		// Decoding into any must produce map[string]any so decoded
		// envelopes can be re-encoded as JSON by the collector.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func unmarshalCBOR(data []byte, v any) error {
	return cborDecMode.Unmarshal(data, v)
}

// splitCBORArray decodes a CBOR array into its raw encoded elements.
func splitCBORArray(data []byte) ([][]byte, error) {
	var elements []cbor.RawMessage
	if err := cborDecMode.Unmarshal(data, &elements); err != nil {
		return nil, err
	}
	out := make([][]byte, len(elements))
	for i, element := range elements {
		out[i] = element
	}
	return out, nil
}

// splitCBORObject decodes a CBOR map into its raw encoded values.
func splitCBORObject(data []byte) (map[string][]byte, error) {
	var fields map[string]cbor.RawMessage
	if err := cborDecMode.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out, nil
}
