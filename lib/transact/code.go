// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import "fmt"

// Code identifies a transaction. Values are part of the wire format:
// append new codes, never renumber.
type Code uint32

const (
	// GetDeviceStatus takes an empty body and replies with a snapshot.
	GetDeviceStatus Code = 1
	// GetRecords takes {string topic, int32 limit} and replies with
	// int32 count followed by count × {int64 offset, bytes key, bytes value}.
	GetRecords Code = 2
	// StartRecording takes an empty body and replies with a snapshot.
	StartRecording Code = 3
	// StopRecording takes an empty body and is sent one-way.
	StopRecording Code = 4
	// GetServerStatus takes an empty body and replies with an int32
	// server status ordinal.
	GetServerStatus Code = 5
)

// FirstSystemCode is the lowest code reserved for built-in
// transactions. Handle panics for codes at or above it.
const FirstSystemCode Code = 0x5f000000

// System transactions, packed from four ASCII characters.
const (
	Ping            Code = '_'<<24 | 'P'<<16 | 'N'<<8 | 'G'
	LinkToDeath     Code = '_'<<24 | 'D'<<16 | 'T'<<8 | 'H'
	SubscribeStatus Code = '_'<<24 | 'S'<<16 | 'U'<<8 | 'B'
)

var codeNames = map[Code]string{
	GetDeviceStatus: "GetDeviceStatus",
	GetRecords:      "GetRecords",
	StartRecording:  "StartRecording",
	StopRecording:   "StopRecording",
	GetServerStatus: "GetServerStatus",
	Ping:            "Ping",
	LinkToDeath:     "LinkToDeath",
	SubscribeStatus: "SubscribeStatus",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%#x)", uint32(c))
}

// IsSystem reports whether c is in the reserved system range.
func (c Code) IsSystem() bool { return c >= FirstSystemCode }

// Flags modify how a transaction is carried.
type Flags uint32

// FlagOneWay asks the server not to reply. The client returns as soon
// as the request is written.
const FlagOneWay Flags = 1 << 0
