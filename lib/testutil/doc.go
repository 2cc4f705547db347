// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for sensorlink
// packages.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets. Socket paths are limited to 108 bytes (sun_path), and
// t.TempDir() paths under some build systems exceed that.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests of asynchronous delivery (status events, death
// notifications, rebinds) fail with a message instead of hanging. They
// are the only place tests use wall-clock timeouts; everything that
// measures time in production code takes a lib/clock.Clock.
//
// All helpers call t.Fatalf on failure.
package testutil
