// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what build of sensorlink is running.
//
// Release builds stamp the commit through -ldflags:
//
//	go build -ldflags "-X github.com/radarcns/sensorlink/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Unstamped builds fall back to the VCS settings the go command
// records in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped at build time.
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
	Version   = "0.1.0-dev"
)

// build is what Info and Full print.
type build struct {
	commit string
	dirty  bool
	time   string
}

func current() build {
	b := build{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	if b.commit != "" {
		return b
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = fromSettings(info.Settings)
	}
	return b
}

func fromSettings(settings []debug.BuildSetting) build {
	var b build
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			b.commit = setting.Value
			if len(b.commit) > 12 {
				b.commit = b.commit[:12]
			}
		case "vcs.modified":
			b.dirty = setting.Value == "true"
		case "vcs.time":
			b.time = setting.Value
		}
	}
	return b
}

func (b build) String() string {
	commit, built := b.commit, b.time
	if commit == "" {
		commit = "unknown"
	}
	if b.dirty {
		commit += "-dirty"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, built)
}

// Info returns the one-line version used in logs and --version.
func Info() string { return current().String() }

// Full adds the Go version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
