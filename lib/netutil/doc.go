// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors.
//
// The transaction layer treats a peer going away as a death
// notification rather than a failure worth logging. IsExpectedCloseError
// recognizes the errors a surviving side sees when that happens, and
// IsTimeout recognizes deadline expiry on a socket read or write.
package netutil
