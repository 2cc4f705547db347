// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package connector lets a controller drive a device-data producer
// without knowing where the producer runs.
//
// A [Connector] obtains a handle from its [Binder]. A producer.Producer
// handle lives in the same process and is called directly; a
// *transact.Client handle reaches a producer process over the
// transaction protocol. The connector classifies the handle once, when
// the binding completes, and every operation afterwards goes through
// the same producer.Producer interface.
//
// Status changes arrive through the producer's broadcast channel and
// are cached, so [Connector.IsRecording], [Connector.IsScanning] and
// [Connector.Status] never make a call. The controller is told about
// each change through [Controller.DeviceStatusUpdated].
//
// # Binding lifecycle
//
//	Unbound --Bind--> Binding --ok--> Bound --death--> Dead --> Rebinding --ok--> Bound
//	                     \--fail--> Unbound                       \--give up--> Unbound
//
// Only a death notification moves a binding from Bound to Dead. A
// failed operation is returned to its caller and the binding stays.
// After a death the connector reports ServiceDisconnected and then
// DeviceStatusUpdated(Disconnected), and rebinds with the parameters of
// the original Bind: the first attempt immediately, later ones after
// exponential backoff, up to [RebindPolicy].MaxAttempts. A rebind whose
// initial status query fails is not retried.
//
// Binder implementations: [LocalBinder] creates an in-process
// producer.Device; [SocketBinder] connects to a producer that is
// already listening; [ProcessBinder] spawns the producer binary when
// nothing answers on its socket.
package connector
