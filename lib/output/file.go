// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gossipwatch/gossipwatch/lib/codec"
	"github.com/gossipwatch/gossipwatch/lib/config"
)

// fileOutput appends each batch as a length-prefixed frame to a local
// file and syncs it before returning. Read the file back with
// codec.ReadFrame.
type fileOutput struct {
	name   string
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

func newFile(name string, cfg config.OutputConfig, options Options) (Output, error) {
	path := strings.TrimPrefix(cfg.Address, "file://")
	if path == "" {
		return nil, fmt.Errorf("address %q names no path", cfg.Address)
	}
	return &fileOutput{
		name:   name,
		path:   filepath.Clean(path),
		logger: options.Logger,
	}, nil
}

func (o *fileOutput) Name() string { return o.name }

func (o *fileOutput) Start(context.Context) error {
	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", o.path, err)
	}
	file, err := os.OpenFile(o.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", o.path, err)
	}
	o.mu.Lock()
	o.file = file
	o.mu.Unlock()
	return nil
}

func (o *fileOutput) Export(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return errNotConnected
	}
	if err := codec.WriteFrame(o.file, batch.Frame()); err != nil {
		return fmt.Errorf("appending to %s: %w", o.path, err)
	}
	if err := syncData(o.file); err != nil {
		return fmt.Errorf("syncing %s: %w", o.path, err)
	}
	return nil
}

func (o *fileOutput) Stop(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}
