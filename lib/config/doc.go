// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Gossipwatch.
//
// Configuration is loaded from a single file named by:
//   - the GOSSIPWATCH_CONFIG environment variable, or
//   - a --config flag passed to a command.
//
// Without a file the subsystem runs with [Default]: enabled, no
// outputs. A named file that cannot be read or parsed is an error.
// Setting GOSSIPWATCH_DISABLE to any non-empty value turns the
// subsystem off regardless of the file.
//
// Files ending in .json or .jsonc are JSON with comments; everything
// else is YAML. Both decode through the same YAML decoder, so field
// names are identical. ${VAR} references in output addresses and
// header values are expanded from the environment, which keeps
// collector credentials out of the file.
//
// The user-facing [Config] is merged with the host's network info and
// client identity into a [RuntimeConfig], the document handed to the
// sink at initialization.
//
// This package depends on no other Gossipwatch packages.
package config
