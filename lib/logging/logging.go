// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured loggers Gossipwatch binaries
// use and derives the level forwarded to the sink.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvLevel names the environment variable consulted by LevelFromEnv.
const EnvLevel = "GOSSIPWATCH_LOG"

// New creates a logger writing to w at level. When w is a terminal it
// uses slog.TextHandler for human-readable output; otherwise
// slog.JSONHandler, matching what log collectors ingest.
func New(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// ParseLevel parses trace, debug, info, warn, or error. Trace maps to
// slog's debug level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// LevelFromEnv extracts a level name from a filter-style value such as
// "info,gossipwatch=debug": the most verbose level mentioned wins.
// Returns "info" when the variable is unset or names no level.
func LevelFromEnv() string {
	return levelFromFilter(os.Getenv(EnvLevel))
}

func levelFromFilter(filter string) string {
	filter = strings.ToLower(filter)
	for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
		if strings.Contains(filter, level) {
			return level
		}
	}
	return "info"
}

// Discard returns a logger that drops every record. Components use it
// when constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
