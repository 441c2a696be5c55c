// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestLinkerValuesWin(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit = "abc1234"
	GitDirty = "false"
	BuildTime = "2026-05-01T00:00:00Z"
	build := Current()
	if build.Commit != "abc1234" || build.Dirty || build.Time != "2026-05-01T00:00:00Z" {
		t.Fatalf("Current() = %+v", build)
	}
	if got := Info(); !strings.Contains(got, "(abc1234, 2026-05-01T00:00:00Z)") {
		t.Errorf("Info() = %q, want clean commit", got)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestCurrentNeverEmpty(t *testing.T) {
	savedCommit, savedTime := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = savedCommit, savedTime })

	GitCommit, BuildTime = "", ""
	build := Current()
	if build.Commit == "" || build.Time == "" {
		t.Fatalf("Current() = %+v, want placeholders for missing values", build)
	}
	if len(build.Commit) > 12 {
		t.Errorf("commit %q not shortened", build.Commit)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	if got := Full(); !strings.Contains(got, "Go: ") || !strings.Contains(got, "Platform: ") {
		t.Errorf("Full() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != Name+"/"+Short() {
		t.Errorf("UserAgent() = %q", got)
	}
}
