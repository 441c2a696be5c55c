// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"errors"
	"fmt"
)

// NetworkInfo is the chain context supplied once at startup. It is
// read-only for the lifetime of an observer.
type NetworkInfo struct {
	// GenesisTime is the chain's genesis as Unix seconds.
	GenesisTime uint64

	// NetworkName is the human name of the network ("mainnet",
	// "holesky"), possibly overridden by configuration.
	NetworkName string

	// NetworkID is the deposit network id.
	NetworkID uint64

	// SlotsPerEpoch is fixed for the process lifetime.
	SlotsPerEpoch uint64

	// SecondsPerSlot is the slot duration.
	SecondsPerSlot uint64
}

// Validate reports whether n can be used to derive epochs and slot
// times.
func (n *NetworkInfo) Validate() error {
	if n == nil {
		return errors.New("network info is required")
	}
	if n.SlotsPerEpoch == 0 {
		return errors.New("network info: slots per epoch must be positive")
	}
	if n.SecondsPerSlot == 0 {
		return errors.New("network info: seconds per slot must be positive")
	}
	if n.NetworkName == "" {
		return errors.New("network info: network name is required")
	}
	return nil
}

// EpochAtSlot returns floor(slot / SlotsPerEpoch). Validate must have
// accepted n.
func (n *NetworkInfo) EpochAtSlot(slot uint64) uint64 {
	return slot / n.SlotsPerEpoch
}

// String summarizes n for logs.
func (n *NetworkInfo) String() string {
	return fmt.Sprintf("%s (id %d, %d slots/epoch, %ds/slot)",
		n.NetworkName, n.NetworkID, n.SlotsPerEpoch, n.SecondsPerSlot)
}

// ChainSpec is the subset of a client's chain configuration needed to
// build NetworkInfo.
type ChainSpec struct {
	ConfigName       string
	DepositNetworkID uint64
	SlotsPerEpoch    uint64
	SecondsPerSlot   uint64
}

// NetworkInfoFromSpec combines a chain spec with the genesis time. A
// non-empty nameOverride replaces the chain spec's config name, for devnets
// whose chain config reuses a public network's name.
func NetworkInfoFromSpec(spec ChainSpec, genesisTime uint64, nameOverride string) *NetworkInfo {
	name := spec.ConfigName
	if nameOverride != "" {
		name = nameOverride
	}
	return &NetworkInfo{
		GenesisTime:    genesisTime,
		NetworkName:    name,
		NetworkID:      spec.DepositNetworkID,
		SlotsPerEpoch:  spec.SlotsPerEpoch,
		SecondsPerSlot: spec.SecondsPerSlot,
	}
}
