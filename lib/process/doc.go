// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for sensorlink binaries:
// error reporting before the structured logger exists, the stderr
// logger, and the signal-aware root context every main() runs under.
package process
