// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to an encoded payload.
// Values are stored in frame headers.
type Compression uint8

const (
	// CompressionNone sends the encoded payload as is.
	CompressionNone Compression = 0

	// CompressionZstd is zstd at the default level. Event batches are
	// repetitive JSON or CBOR and typically shrink 5-10x.
	CompressionZstd Compression = 1

	// CompressionLZ4 is the LZ4 frame format. Lower ratio than zstd at
	// a fraction of the CPU cost.
	CompressionLZ4 Compression = 2
)

// MaxDecompressedSize bounds Decompress output. A full batch of ten
// thousand events encodes to a few megabytes; anything larger than
// this is malformed or hostile.
const MaxDecompressedSize = 256 << 20

// ErrTooLarge is returned by Decompress when the output would exceed
// the size limit.
var ErrTooLarge = errors.New("codec: decompressed payload exceeds size limit")

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name. The empty string selects
// no compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (expected none, zstd, or lz4)", name)
	}
}

// ContentEncoding returns the HTTP Content-Encoding token, or "" for
// uncompressed payloads.
func (c Compression) ContentEncoding() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return ""
	}
}

// CompressionForContentEncoding maps a Content-Encoding token back to
// a Compression.
func CompressionForContentEncoding(encoding string) (Compression, error) {
	switch encoding {
	case "", "identity":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent
// use through EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
	)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress applies c to data. For CompressionNone it returns data
// unchanged (no copy).
func (c Compression) Compress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
	case CompressionLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buffer.Bytes(), nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression %d", c)
	}
}

// Decompress reverses Compress. Output larger than MaxDecompressedSize
// fails with ErrTooLarge.
func (c Compression) Decompress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		reader := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(io.LimitReader(reader, MaxDecompressedSize+1))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if len(out) > MaxDecompressedSize {
			return nil, ErrTooLarge
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unsupported compression %d", c)
	}
}
