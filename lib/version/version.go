// Copyright 2026 The Gossipwatch Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Name is the client name reported when the host does not supply one.
const Name = "gossipwatch"

// Set with -ldflags -X. Empty values fall back to the VCS stamp the Go
// toolchain embeds in the binary.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// Build identifies the binary that is running.
type Build struct {
	Version string
	Commit  string
	Dirty   bool
	Time    string
}

var (
	stampOnce sync.Once
	stamp     map[string]string
)

// vcsSetting reads one vcs.* setting from the embedded build info.
func vcsSetting(key string) string {
	stampOnce.Do(func() {
		stamp = make(map[string]string)
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			stamp[setting.Key] = setting.Value
		}
	})
	return stamp[key]
}

// Current returns the build identity, preferring linker-set values.
func Current() Build {
	build := Build{Version: Version, Commit: GitCommit, Time: BuildTime}
	if build.Commit == "" {
		build.Commit = vcsSetting("vcs.revision")
		if len(build.Commit) > 12 {
			build.Commit = build.Commit[:12]
		}
	}
	if build.Commit == "" {
		build.Commit = "unknown"
	}
	if build.Time == "" {
		build.Time = vcsSetting("vcs.time")
	}
	if build.Time == "" {
		build.Time = "unknown"
	}
	dirty := GitDirty
	if dirty == "" {
		dirty = vcsSetting("vcs.modified")
	}
	build.Dirty = dirty == "true"
	return build
}

// Info formats the build for --version and startup logs.
func Info() string {
	build := Current()
	dirty := ""
	if build.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", build.Version, build.Commit, dirty, build.Time)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short is the semantic version alone. It is the default client
// version reported to the sink.
func Short() string {
	return Version
}

// UserAgent identifies gossipwatch to collectors.
func UserAgent() string {
	return Name + "/" + Version
}
