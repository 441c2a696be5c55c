// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the document handed to the sink at initialization:
// the user configuration merged with values only the host knows.
type RuntimeConfig struct {
	LogLevel  string          `yaml:"log_level,omitempty"`
	Processor ProcessorConfig `yaml:"processor"`
}

// ProcessorConfig is the sink-side view of one observer.
type ProcessorConfig struct {
	Name      string          `yaml:"name"`
	Outputs   []Output        `yaml:"outputs"`
	Ethereum  EthereumRuntime `yaml:"ethereum"`
	Client    ClientInfo      `yaml:"client"`
	NTPServer string          `yaml:"ntpServer,omitempty"`
}

// EthereumRuntime carries the network context.
type EthereumRuntime struct {
	Implementation string      `yaml:"implementation"`
	GenesisTime    uint64      `yaml:"genesis_time"`
	SecondsPerSlot uint64      `yaml:"seconds_per_slot"`
	SlotsPerEpoch  uint64      `yaml:"slots_per_epoch"`
	Network        NetworkName `yaml:"network"`
}

// NetworkName identifies the chain.
type NetworkName struct {
	Name string `yaml:"name"`
	ID   uint64 `yaml:"id"`
}

// ClientInfo identifies the host client build.
type ClientInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Network is the host-supplied network context, decoupled from the
// consensus types so this package stays a leaf.
type Network struct {
	GenesisTime    uint64
	Name           string
	ID             uint64
	SlotsPerEpoch  uint64
	SecondsPerSlot uint64
}

// Runtime merges c with the host's network context, client identity,
// and log level. The network name override has already been applied
// to network by the caller.
func (c *Config) Runtime(network Network, client ClientInfo, logLevel string) RuntimeConfig {
	name := c.Name
	if name == "" {
		name = client.Name
	}
	outputs := c.Outputs
	if outputs == nil {
		outputs = []Output{}
	}
	return RuntimeConfig{
		LogLevel: logLevel,
		Processor: ProcessorConfig{
			Name:    name,
			Outputs: outputs,
			Ethereum: EthereumRuntime{
				Implementation: client.Name,
				GenesisTime:    network.GenesisTime,
				SecondsPerSlot: network.SecondsPerSlot,
				SlotsPerEpoch:  network.SlotsPerEpoch,
				Network: NetworkName{
					Name: network.Name,
					ID:   network.ID,
				},
			},
			Client:    client,
			NTPServer: c.NTPServer,
		},
	}
}

// Marshal encodes r as YAML.
func (r RuntimeConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}

// ParseRuntime decodes a document produced by Marshal.
func ParseRuntime(data []byte) (RuntimeConfig, error) {
	var runtime RuntimeConfig
	if err := yaml.Unmarshal(data, &runtime); err != nil {
		return RuntimeConfig{}, fmt.Errorf("parsing runtime config: %w", err)
	}
	return runtime, nil
}

// ErrNoNetwork is returned by ValidateNetwork when the network block
// is missing or unusable.
var ErrNoNetwork = errors.New("runtime config: network info is missing")

// ValidateNetwork reports whether the ethereum block can derive epochs.
func (r RuntimeConfig) ValidateNetwork() error {
	ethereum := r.Processor.Ethereum
	if ethereum.SlotsPerEpoch == 0 || ethereum.SecondsPerSlot == 0 || ethereum.Network.Name == "" {
		return ErrNoNetwork
	}
	return nil
}
