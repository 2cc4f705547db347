// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import "github.com/radarcns/sensorlink/lib/schema/device"

// Controller receives connector lifecycle callbacks. Callbacks run on
// connector goroutines and must not block for long; they may call
// back into the connector, including Unbind.
type Controller interface {
	// ServiceConnected is called each time a binding completes.
	ServiceConnected(c *Connector)

	// ServiceDisconnected is called when a binding ends, by Unbind or
	// by producer death.
	ServiceDisconnected(c *Connector)

	// DeviceStatusUpdated is called for every status event, and with
	// Disconnected after a producer death.
	DeviceStatusUpdated(c *Connector, status device.Status)

	// ServiceFailed is called when a bind or rebind gives up. The
	// connector is Unbound afterwards.
	ServiceFailed(c *Connector, err error)
}

// ControllerFuncs adapts plain functions to Controller. Nil fields
// ignore their callback.
type ControllerFuncs struct {
	Connected     func(c *Connector)
	Disconnected  func(c *Connector)
	StatusUpdated func(c *Connector, status device.Status)
	Failed        func(c *Connector, err error)
}

func (f ControllerFuncs) ServiceConnected(c *Connector) {
	if f.Connected != nil {
		f.Connected(c)
	}
}

func (f ControllerFuncs) ServiceDisconnected(c *Connector) {
	if f.Disconnected != nil {
		f.Disconnected(c)
	}
}

func (f ControllerFuncs) DeviceStatusUpdated(c *Connector, status device.Status) {
	if f.StatusUpdated != nil {
		f.StatusUpdated(c, status)
	}
}

func (f ControllerFuncs) ServiceFailed(c *Connector, err error) {
	if f.Failed != nil {
		f.Failed(c, err)
	}
}
