// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// frameMagic leads every frame header so a reader can reject data
// that is not a Gossipwatch frame.
const frameMagic = 0x67

// frameHeaderSize is magic, format, compression.
const frameHeaderSize = 3

// Frame is a self-describing payload for transports that carry no
// metadata of their own: a websocket message or a record in a file.
type Frame struct {
	Format      Format
	Compression Compression
	Payload     []byte
}

// MarshalFrame encodes f as header followed by payload.
func MarshalFrame(f Frame) []byte {
	out := make([]byte, 0, frameHeaderSize+len(f.Payload))
	out = append(out, frameMagic, byte(f.Format), byte(f.Compression))
	return append(out, f.Payload...)
}

// UnmarshalFrame parses a frame produced by MarshalFrame. The returned
// payload aliases data.
func UnmarshalFrame(data []byte) (Frame, error) {
	if len(data) < frameHeaderSize {
		return Frame{}, fmt.Errorf("codec: frame too short (%d bytes)", len(data))
	}
	if data[0] != frameMagic {
		return Frame{}, fmt.Errorf("codec: bad frame magic 0x%02x", data[0])
	}
	frame := Frame{
		Format:      Format(data[1]),
		Compression: Compression(data[2]),
		Payload:     data[frameHeaderSize:],
	}
	if frame.Format > FormatCBOR {
		return Frame{}, fmt.Errorf("codec: unknown frame format %d", frame.Format)
	}
	if frame.Compression > CompressionLZ4 {
		return Frame{}, fmt.Errorf("codec: unknown frame compression %d", frame.Compression)
	}
	return frame, nil
}

// Decode decompresses the frame payload and decodes it into v.
func (f Frame) Decode(v any) error {
	payload, err := f.Compression.Decompress(f.Payload)
	if err != nil {
		return err
	}
	return f.Format.Unmarshal(payload, v)
}

// WriteFrame writes a uvarint length prefix followed by the frame.
func WriteFrame(w io.Writer, f Frame) error {
	encoded := MarshalFrame(f)
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(encoded)))
	if _, err := w.Write(prefix[:n]); err != nil {
		return err
	}
	_, err := w.Write(encoded)
	return err
}

// ReadFrame reads one length-prefixed frame written by WriteFrame.
// Returns io.EOF at a clean end of stream.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("codec: reading frame length: %w", err)
	}
	if length > MaxDecompressedSize {
		return Frame{}, ErrTooLarge
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Frame{}, fmt.Errorf("codec: reading frame body: %w", err)
	}
	return UnmarshalFrame(data)
}
