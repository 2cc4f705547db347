// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerPID returns the process ID of the process on the other end of a
// Unix socket connection.
func peerPID(conn net.Conn) (int32, bool) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, false
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return 0, false
	}
	var credentials *unix.Ucred
	var credentialsErr error
	if err := rawConn.Control(func(fd uintptr) {
		credentials, credentialsErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credentialsErr != nil {
		return 0, false
	}
	return credentials.Pid, true
}
