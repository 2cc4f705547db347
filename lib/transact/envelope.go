// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import "time"

// Request is the CBOR envelope a client writes on a new connection.
type Request struct {
	Code  Code   `cbor:"code"`
	Flags Flags  `cbor:"flags,omitempty"`
	Data  []byte `cbor:"data,omitempty"`
}

// Response is the CBOR envelope a server writes back. Code echoes the
// request code. When OK is false, Error carries the handler's message
// and Data is empty.
type Response struct {
	Code  Code   `cbor:"code"`
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
	Data  []byte `cbor:"data,omitempty"`
}

const (
	// DefaultCallTimeout bounds one transaction from dial to reply.
	DefaultCallTimeout = 10 * time.Second

	// DefaultDialTimeout bounds the connect phase alone.
	DefaultDialTimeout = 5 * time.Second

	// maxMessageSize caps one request or response envelope.
	maxMessageSize = 1024 * 1024

	// readTimeout is how long the server waits for a request after
	// accepting a connection.
	readTimeout = 30 * time.Second

	// writeTimeout bounds each server write, including stream events.
	writeTimeout = 10 * time.Second
)
