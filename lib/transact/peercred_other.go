// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package transact

import "net"

func peerPID(net.Conn) (int32, bool) { return 0, false }
