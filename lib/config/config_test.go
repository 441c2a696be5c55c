// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
enabled: true
name: node-1
ntpServer: time.google.com
ethereum:
  overrideNetworkName: devnet-7
outputs:
  - name: collector
    type: http
    config:
      address: https://collector.example/v1/batches
      headers:
        authorization: Basic ${GOSSIPWATCH_TEST_TOKEN}
      tls: true
      maxQueueSize: 1000
      batchTimeout: 2s
      exportTimeout: 10s
      maxExportBatchSize: 100
      workers: 4
      compression: zstd
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()
	if !config.Enabled {
		t.Error("default config is disabled")
	}
	if len(config.Outputs) != 0 {
		t.Errorf("default config has %d outputs", len(config.Outputs))
	}
}

func TestLoadFileYAML(t *testing.T) {
	t.Setenv("GOSSIPWATCH_TEST_TOKEN", "c2VjcmV0")
	config, err := LoadFile(writeFile(t, "gossipwatch.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if config.Name != "node-1" || config.NTPServer != "time.google.com" {
		t.Errorf("unexpected top-level fields: %+v", config)
	}
	if got := config.NetworkNameOverride(); got != "devnet-7" {
		t.Errorf("NetworkNameOverride = %q, want devnet-7", got)
	}
	if len(config.Outputs) != 1 {
		t.Fatalf("got %d outputs, want 1", len(config.Outputs))
	}
	output := config.Outputs[0]
	if got := output.Config.Headers["authorization"]; got != "Basic c2VjcmV0" {
		t.Errorf("header not expanded: %q", got)
	}
	if !output.Config.TLS || output.Config.Compression != "zstd" {
		t.Errorf("unexpected output config: %+v", output.Config)
	}

	settings := output.Config.Settings()
	if settings.MaxQueueSize != 1000 || settings.MaxExportBatchSize != 100 || settings.Workers != 4 {
		t.Errorf("unexpected settings: %+v", settings)
	}
	if settings.BatchTimeout != 2*time.Second || settings.ExportTimeout != 10*time.Second {
		t.Errorf("unexpected durations: %+v", settings)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	content := `{
  // collectors for the devnet
  "enabled": true,
  "outputs": [
    {"name": "stream", "type": "websocket", "config": {"address": "ws://localhost:8080/v1/stream"}}, /* trailing */
  ],
}`
	config, err := LoadFile(writeFile(t, "gossipwatch.jsonc", content))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(config.Outputs) != 1 || config.Outputs[0].Type != "websocket" {
		t.Fatalf("unexpected outputs: %+v", config.Outputs)
	}
}

func TestLoadFileMissingIsError(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config file accepted")
	}
}

func TestLoadFileMalformedIsError(t *testing.T) {
	if _, err := LoadFile(writeFile(t, "bad.yaml", "enabled: [unterminated")); err == nil {
		t.Fatal("malformed config file accepted")
	}
}

func TestAbsentEnabledKeepsDefault(t *testing.T) {
	config, err := Parse([]byte("name: quiet\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !config.Enabled {
		t.Error("file without enabled key disabled the subsystem")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"missing name": `
outputs:
  - type: http
    config: {address: "http://x"}`,
		"duplicate name": `
outputs:
  - {name: a, type: http, config: {address: "http://x"}}
  - {name: a, type: http, config: {address: "http://y"}}`,
		"unknown type": `
outputs:
  - {name: a, type: kafka, config: {address: x}}`,
		"missing address": `
outputs:
  - {name: a, type: http, config: {}}`,
		"bad duration": `
outputs:
  - {name: a, type: http, config: {address: "http://x", exportTimeout: soon}}`,
		"negative workers": `
outputs:
  - {name: a, type: http, config: {address: "http://x", workers: -1}}`,
		"unknown compression": `
outputs:
  - {name: a, type: http, config: {address: "http://x", compression: brotli}}`,
	}
	for name, content := range tests {
		if _, err := Parse([]byte(content)); err == nil {
			t.Errorf("%s: Parse accepted invalid config", name)
		}
	}
}

func TestSettingsDefaults(t *testing.T) {
	settings := OutputConfig{Address: "http://x"}.Settings()
	want := OutputSettings{
		MaxQueueSize:       DefaultMaxQueueSize,
		BatchTimeout:       DefaultBatchTimeout,
		ExportTimeout:      DefaultExportTimeout,
		MaxExportBatchSize: DefaultMaxExportBatchSize,
		Workers:            DefaultWorkers,
	}
	if settings != want {
		t.Fatalf("Settings() = %+v, want %+v", settings, want)
	}
}

func TestFromEnvironment(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		t.Setenv(EnvDisable, "1")
		t.Setenv(EnvConfigPath, "/nonexistent.yaml")
		config, err := FromEnvironment()
		if err != nil || config != nil {
			t.Fatalf("FromEnvironment = (%v, %v), want (nil, nil)", config, err)
		}
	})

	t.Run("unset path uses default", func(t *testing.T) {
		t.Setenv(EnvDisable, "")
		t.Setenv(EnvConfigPath, "")
		config, err := FromEnvironment()
		if err != nil {
			t.Fatalf("FromEnvironment: %v", err)
		}
		if !config.Enabled {
			t.Fatal("default config disabled")
		}
	})

	t.Run("named file", func(t *testing.T) {
		t.Setenv(EnvDisable, "")
		t.Setenv(EnvConfigPath, writeFile(t, "g.yaml", "enabled: false\n"))
		config, err := FromEnvironment()
		if err != nil {
			t.Fatalf("FromEnvironment: %v", err)
		}
		if config.Enabled {
			t.Fatal("enabled: false ignored")
		}
	})

	t.Run("broken file is an error", func(t *testing.T) {
		t.Setenv(EnvDisable, "")
		t.Setenv(EnvConfigPath, writeFile(t, "g.yaml", "outputs: {"))
		if _, err := FromEnvironment(); err == nil {
			t.Fatal("broken config file accepted")
		}
	})
}

func TestRuntimeMerge(t *testing.T) {
	config := &Config{Enabled: true, NTPServer: "pool.ntp.org"}
	runtime := config.Runtime(
		Network{GenesisTime: 1606824023, Name: "mainnet", ID: 1, SlotsPerEpoch: 32, SecondsPerSlot: 12},
		ClientInfo{Name: "lighthouse", Version: "v7.0.0"},
		"debug",
	)

	if runtime.Processor.Name != "lighthouse" {
		t.Errorf("processor name = %q, want client name fallback", runtime.Processor.Name)
	}
	if runtime.Processor.Outputs == nil {
		t.Error("outputs should encode as an empty list, not null")
	}
	if err := runtime.ValidateNetwork(); err != nil {
		t.Errorf("ValidateNetwork: %v", err)
	}

	data, err := runtime.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{"log_level: debug", "genesis_time: 1606824023", "slots_per_epoch: 32", "ntpServer: pool.ntp.org", "implementation: lighthouse"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("runtime YAML missing %q:\n%s", key, data)
		}
	}

	parsed, err := ParseRuntime(data)
	if err != nil {
		t.Fatalf("ParseRuntime: %v", err)
	}
	if parsed.Processor.Ethereum != runtime.Processor.Ethereum {
		t.Errorf("ethereum block = %+v, want %+v", parsed.Processor.Ethereum, runtime.Processor.Ethereum)
	}
}

func TestRuntimeWithoutNetwork(t *testing.T) {
	runtime := Default().Runtime(Network{}, ClientInfo{Name: "c"}, "")
	if err := runtime.ValidateNetwork(); err != ErrNoNetwork {
		t.Fatalf("ValidateNetwork = %v, want ErrNoNetwork", err)
	}
}
