// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by FromEnvironment.
const (
	EnvConfigPath = "GOSSIPWATCH_CONFIG"
	EnvDisable    = "GOSSIPWATCH_DISABLE"
)

// Output defaults applied by OutputConfig.WithDefaults.
const (
	DefaultMaxQueueSize       = 51200
	DefaultBatchTimeout       = 5 * time.Second
	DefaultExportTimeout      = 30 * time.Second
	DefaultMaxExportBatchSize = 512
	DefaultWorkers            = 1
)

// Config is the user-facing Gossipwatch configuration.
type Config struct {
	// Enabled turns the subsystem on. Default: true.
	Enabled bool `yaml:"enabled"`

	// Name identifies this node to collectors. Defaults to the client
	// name.
	Name string `yaml:"name,omitempty"`

	// Outputs are the destinations batches are exported to.
	Outputs []Output `yaml:"outputs,omitempty"`

	// NTPServer is passed through to the sink for clock-skew
	// correction.
	NTPServer string `yaml:"ntpServer,omitempty"`

	// Ethereum holds chain-related overrides.
	Ethereum *EthereumConfig `yaml:"ethereum,omitempty"`
}

// EthereumConfig holds chain-related overrides.
type EthereumConfig struct {
	// OverrideNetworkName replaces the network name derived from the
	// chain spec.
	OverrideNetworkName string `yaml:"overrideNetworkName,omitempty"`
}

// Output is one named destination.
type Output struct {
	Name   string       `yaml:"name"`
	Type   string       `yaml:"type"`
	Config OutputConfig `yaml:"config"`
}

// OutputConfig tunes a destination. Zero numeric values and empty
// durations select the defaults.
type OutputConfig struct {
	// Address is the destination: a URL for network outputs, a path
	// for the file output.
	Address string `yaml:"address"`

	// Headers are sent with every export.
	Headers map[string]string `yaml:"headers,omitempty"`

	// TLS selects an encrypted connection when Address has no scheme.
	TLS bool `yaml:"tls,omitempty"`

	// MaxQueueSize caps the events the output accepts per send.
	MaxQueueSize int `yaml:"maxQueueSize,omitempty"`

	// BatchTimeout is the maximum delay before a partial export batch
	// is sent. Exports are synchronous, so it is validated and carried
	// but bounds nothing further.
	BatchTimeout string `yaml:"batchTimeout,omitempty"`

	// ExportTimeout bounds a single chunk export.
	ExportTimeout string `yaml:"exportTimeout,omitempty"`

	// MaxExportBatchSize is the number of events per exported chunk.
	MaxExportBatchSize int `yaml:"maxExportBatchSize,omitempty"`

	// Workers is the number of chunks exported concurrently.
	Workers int `yaml:"workers,omitempty"`

	// Encoding is the payload format: json (default) or cbor.
	Encoding string `yaml:"encoding,omitempty"`

	// Compression is none (default), zstd, or lz4.
	Compression string `yaml:"compression,omitempty"`
}

// Default returns the configuration used when no file is named.
func Default() *Config {
	return &Config{Enabled: true}
}

// FromEnvironment loads configuration the way a host client does at
// startup. It returns (nil, nil) when GOSSIPWATCH_DISABLE is set, the
// file named by GOSSIPWATCH_CONFIG when that is set, and Default()
// otherwise.
func FromEnvironment() (*Config, error) {
	if os.Getenv(EnvDisable) != "" {
		return nil, nil
	}
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads and validates configuration from path. Keys absent
// from the file keep their Default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes YAML (or plain JSON) configuration, expands
// environment references, and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	config.expandVariables()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// expandVariables resolves ${VAR} references in addresses and header
// values.
func (c *Config) expandVariables() {
	for i := range c.Outputs {
		output := &c.Outputs[i].Config
		output.Address = os.ExpandEnv(output.Address)
		for key, value := range output.Headers {
			output.Headers[key] = os.ExpandEnv(value)
		}
	}
}

// Validate checks output names, types, addresses, and tuning knobs.
// Output types are checked against KnownOutputTypes.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Outputs))
	for i, output := range c.Outputs {
		label := fmt.Sprintf("outputs[%d]", i)
		if output.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else {
			label = fmt.Sprintf("output %q", output.Name)
			if seen[output.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", label))
			}
			seen[output.Name] = true
		}
		if !isKnownOutputType(output.Type) {
			errs = append(errs, fmt.Errorf("%s: unknown type %q (expected one of %s)",
				label, output.Type, strings.Join(KnownOutputTypes, ", ")))
		}
		if err := output.Config.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// KnownOutputTypes lists the output types the processor can construct.
var KnownOutputTypes = []string{"http", "websocket", "nats", "file"}

func isKnownOutputType(outputType string) bool {
	for _, known := range KnownOutputTypes {
		if outputType == known {
			return true
		}
	}
	return false
}

func (o OutputConfig) validate() error {
	if o.Address == "" {
		return errors.New("address is required")
	}
	for name, value := range map[string]string{
		"batchTimeout":  o.BatchTimeout,
		"exportTimeout": o.ExportTimeout,
	} {
		if value == "" {
			continue
		}
		duration, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for name, value := range map[string]int{
		"maxQueueSize":       o.MaxQueueSize,
		"maxExportBatchSize": o.MaxExportBatchSize,
		"workers":            o.Workers,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	switch o.Encoding {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("unknown encoding %q", o.Encoding)
	}
	switch o.Compression {
	case "", "none", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown compression %q", o.Compression)
	}
	return nil
}

// OutputSettings is an OutputConfig with defaults applied and
// durations parsed.
type OutputSettings struct {
	MaxQueueSize       int
	BatchTimeout       time.Duration
	ExportTimeout      time.Duration
	MaxExportBatchSize int
	Workers            int
}

// Settings applies defaults to the tuning knobs. The config must have
// passed Validate.
func (o OutputConfig) Settings() OutputSettings {
	settings := OutputSettings{
		MaxQueueSize:       o.MaxQueueSize,
		BatchTimeout:       DefaultBatchTimeout,
		ExportTimeout:      DefaultExportTimeout,
		MaxExportBatchSize: o.MaxExportBatchSize,
		Workers:            o.Workers,
	}
	if settings.MaxQueueSize == 0 {
		settings.MaxQueueSize = DefaultMaxQueueSize
	}
	if settings.MaxExportBatchSize == 0 {
		settings.MaxExportBatchSize = DefaultMaxExportBatchSize
	}
	if settings.Workers == 0 {
		settings.Workers = DefaultWorkers
	}
	if duration, err := time.ParseDuration(o.BatchTimeout); err == nil && duration > 0 {
		settings.BatchTimeout = duration
	}
	if duration, err := time.ParseDuration(o.ExportTimeout); err == nil && duration > 0 {
		settings.ExportTimeout = duration
	}
	return settings
}

// NetworkNameOverride returns the configured override, or "".
func (c *Config) NetworkNameOverride() string {
	if c == nil || c.Ethereum == nil {
		return ""
	}
	return c.Ethereum.OverrideNetworkName
}
