// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Format identifies a payload encoding. Values are stored in frame
// headers, so changing them breaks compatibility with recorded files.
type Format uint8

const (
	// FormatJSON is JSON. The zero value, and the encoding on the
	// bridge-to-sink boundary.
	FormatJSON Format = 0

	// FormatCBOR is CBOR with Core Deterministic Encoding.
	FormatCBOR Format = 1
)

// String returns the configuration name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// ParseFormat parses a format name. The empty string selects JSON.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "", "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q (expected json or cbor)", name)
	}
}

// ContentType returns the HTTP media type for the format.
func (f Format) ContentType() string {
	if f == FormatCBOR {
		return "application/cbor"
	}
	return "application/json"
}

// FormatForContentType maps an HTTP media type back to a Format.
func FormatForContentType(contentType string) (Format, error) {
	switch contentType {
	case "", "application/json":
		return FormatJSON, nil
	case "application/cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("unsupported content type %q", contentType)
	}
}

// Marshal encodes v in format f.
func (f Format) Marshal(v any) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(v)
	case FormatCBOR:
		return marshalCBOR(v)
	default:
		return nil, fmt.Errorf("codec: unsupported format %d", f)
	}
}

// Unmarshal decodes data in format f into v.
func (f Format) Unmarshal(data []byte, v any) error {
	switch f {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatCBOR:
		return unmarshalCBOR(data, v)
	default:
		return fmt.Errorf("codec: unsupported format %d", f)
	}
}

// SplitArray decodes an encoded array into its raw elements without
// decoding the elements themselves. Each element can be passed to
// Unmarshal later.
func (f Format) SplitArray(data []byte) ([][]byte, error) {
	switch f {
	case FormatJSON:
		var elements []json.RawMessage
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil, err
		}
		out := make([][]byte, len(elements))
		for i, element := range elements {
			out[i] = element
		}
		return out, nil
	case FormatCBOR:
		return splitCBORArray(data)
	default:
		return nil, fmt.Errorf("codec: unsupported format %d", f)
	}
}

// SplitObject decodes an encoded map with string keys into its raw
// values, leaving each value encoded.
func (f Format) SplitObject(data []byte) (map[string][]byte, error) {
	switch f {
	case FormatJSON:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		out := make(map[string][]byte, len(fields))
		for key, value := range fields {
			out[key] = value
		}
		return out, nil
	case FormatCBOR:
		return splitCBORObject(data)
	default:
		return nil, fmt.Errorf("codec: unsupported format %d", f)
	}
}
