// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies the running gossipwatch build and the
// default client identity reported to collectors.
//
// Release builds set [Version], [GitCommit], [GitDirty] and [BuildTime]
// with -ldflags -X:
//
//	go build -ldflags "-X github.com/gossipwatch/gossipwatch/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Plain go build and go install binaries leave them empty, and
// [Current] reads the vcs.revision, vcs.modified and vcs.time stamps
// from the embedded build info instead.
package version
