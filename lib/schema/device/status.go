// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package device

import "fmt"

// Status is the connection state of the physical device behind a
// producer.
type Status int32

const (
	// Disconnected: no device and not looking for one.
	Disconnected Status = 0
	// Ready: recording was requested and the producer is scanning.
	Ready Status = 1
	// Connecting: a device was found and a link is being set up.
	Connecting Status = 2
	// Connected: the device is streaming measurements.
	Connected Status = 3
	// Disconnecting: the link is being torn down.
	Disconnecting Status = 4
)

var statusNames = [...]string{
	Disconnected:  "disconnected",
	Ready:         "ready",
	Connecting:    "connecting",
	Connected:     "connected",
	Disconnecting: "disconnecting",
}

func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Valid reports whether s is a known ordinal.
func (s Status) Valid() bool {
	return s >= 0 && int(s) < len(statusNames)
}

// StatusFromOrdinal validates an ordinal received from another process.
func StatusFromOrdinal(ordinal int32) (Status, error) {
	status := Status(ordinal)
	if !status.Valid() {
		return 0, fmt.Errorf("unknown device status ordinal %d", ordinal)
	}
	return status, nil
}

// ServerStatus is the state of the producer's connection to the upload
// backend.
type ServerStatus int32

const (
	ServerDisconnected ServerStatus = 0
	ServerConnecting   ServerStatus = 1
	ServerConnected    ServerStatus = 2
	ServerUploading    ServerStatus = 3
	// ServerUploadFailed: the last upload attempt failed; the producer
	// keeps records cached and retries.
	ServerUploadFailed ServerStatus = 4
	// ServerDisabled: uploading is switched off for this producer.
	ServerDisabled ServerStatus = 5
)

var serverStatusNames = [...]string{
	ServerDisconnected: "disconnected",
	ServerConnecting:   "connecting",
	ServerConnected:    "connected",
	ServerUploading:    "uploading",
	ServerUploadFailed: "upload-failed",
	ServerDisabled:     "disabled",
}

func (s ServerStatus) String() string {
	if s.Valid() {
		return serverStatusNames[s]
	}
	return fmt.Sprintf("server-status(%d)", int32(s))
}

func (s ServerStatus) Valid() bool {
	return s >= 0 && int(s) < len(serverStatusNames)
}

// ServerStatusFromOrdinal validates an ordinal received from another
// process.
func ServerStatusFromOrdinal(ordinal int32) (ServerStatus, error) {
	status := ServerStatus(ordinal)
	if !status.Valid() {
		return 0, fmt.Errorf("unknown server status ordinal %d", ordinal)
	}
	return status, nil
}

// StatusEvent is published by a producer every time its device status
// changes. Name is the device's display name when the producer knows
// it; empty means "unchanged".
type StatusEvent struct {
	Status Status `cbor:"status"`
	Name   string `cbor:"name,omitempty"`
}
