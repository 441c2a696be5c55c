// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"

	"github.com/gossipwatch/gossipwatch/lib/codec"
)

// EncodeBatch encodes events as an array in the given format, in
// order.
func EncodeBatch(format codec.Format, events []Event) ([]byte, error) {
	return format.Marshal(events)
}

// DecodeBatch decodes an array produced by EncodeBatch. Each element
// is dispatched on its event_type.
func DecodeBatch(format codec.Format, data []byte) ([]Event, error) {
	elements, err := format.SplitArray(data)
	if err != nil {
		return nil, fmt.Errorf("decoding event batch: %w", err)
	}

	events := make([]Event, 0, len(elements))
	for i, element := range elements {
		var header struct {
			Type Kind `json:"event_type"`
		}
		if err := format.Unmarshal(element, &header); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		record, err := newForKind(header.Type)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if err := format.Unmarshal(element, record); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, header.Type, err)
		}
		events = append(events, record)
	}
	return events, nil
}

// CountByKind tallies events per discriminator.
func CountByKind(events []Event) map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, record := range events {
		counts[record.Kind()]++
	}
	return counts
}
