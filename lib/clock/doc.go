// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// Code that waits (rebind backoff, producer start-up polling, the
// sensor simulator's sample ticker) takes a Clock instead of calling
// the time package directly. Production passes Real(); tests pass
// Fake() and move time forward explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	connector := connector.New(binder, controller, connector.Options{Clock: c})
//	// ... trigger a rebind ...
//	c.WaitForTimers(1)         // the backoff timer is registered
//	c.Advance(2 * time.Second) // and now it fires
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
