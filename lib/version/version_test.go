// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoStamped(t *testing.T) {
	commit, dirty, built := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = commit, dirty, built })

	GitCommit, GitDirty, BuildTime = "abc1234", "false", "2026-03-01T10:00:00Z"
	if got, want := Info(), Version+" (abc1234, 2026-03-01T10:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	GitDirty = "true"
	if !strings.Contains(Info(), "abc1234-dirty") {
		t.Errorf("dirty build not marked: %q", Info())
	}
}

func TestFromSettings(t *testing.T) {
	b := fromSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
		{Key: "GOOS", Value: "linux"},
	})
	if b.commit != "0123456789ab" || !b.dirty || b.time != "2026-02-03T04:05:06Z" {
		t.Errorf("build = %+v", b)
	}
	if got := (build{}).String(); got != Version+" (unknown, unknown)" {
		t.Errorf("empty build = %q", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q, want prefix %q", full, Info())
	}
	if !strings.Contains(full, "Platform:") {
		t.Errorf("Full() missing platform: %q", full)
	}
}
