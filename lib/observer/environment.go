// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package observer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gossipwatch/gossipwatch/lib/beacon"
	"github.com/gossipwatch/gossipwatch/lib/config"
	"github.com/gossipwatch/gossipwatch/lib/logging"
	"github.com/gossipwatch/gossipwatch/lib/sink"
)

// StartConfig is what a host client knows at startup.
type StartConfig struct {
	ChainSpec   beacon.ChainSpec
	GenesisTime uint64
	Client      config.ClientInfo

	// Sink, Logger, and Registerer are passed through to Config.
	Sink       sink.Sink
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// FromEnvironment builds an observer configured by GOSSIPWATCH_CONFIG,
// with the sink log level taken from GOSSIPWATCH_LOG. It returns a nil
// Observer and nil error when GOSSIPWATCH_DISABLE is set or the
// configuration disables the subsystem.
func FromEnvironment(ctx context.Context, start StartConfig) (*Observer, error) {
	logger := start.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	settings, err := config.FromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("loading gossipwatch configuration: %w", err)
	}
	if settings == nil || !settings.Enabled {
		logger.Info("gossipwatch disabled")
		return nil, nil
	}

	network := beacon.NetworkInfoFromSpec(start.ChainSpec, start.GenesisTime, settings.NetworkNameOverride())
	return New(ctx, Config{
		Settings:   settings,
		Network:    network,
		Sink:       start.Sink,
		Client:     start.Client,
		LogLevel:   logging.LevelFromEnv(),
		Logger:     logger,
		Registerer: start.Registerer,
	})
}
