// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the gossip telemetry records the observer
// produces and the batch delivers.
//
// Every record embeds [Metadata], the fields common to all gossip
// messages, and adds a few variant-specific fields. Records are flat:
// large binary data is represented by roots and counts. A record is
// built once by the observer and never modified afterwards.
//
// Records serialize with an "event_type" discriminator so a batch can
// mix kinds. [DecodeBatch] reverses [codec.Format.Marshal] on a slice of
// records.
package event
