// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import "fmt"

// TransportError means the transaction could not be carried: the
// socket could not be dialed, a write or read failed, or the call
// timed out. The producer may or may not have run the handler.
type TransportError struct {
	Op   string
	Code Code
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transact %s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the peer answered with something that does not
// follow the wire format: a mismatched code, a short body, or bytes
// left unread after the reply was decoded.
type ProtocolError struct {
	Code Code
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("transact %s: protocol violation: %v", e.Code, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RemoteError carries a handler failure reported by the server.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("transact %s: remote: %s", e.Code, e.Message)
}
