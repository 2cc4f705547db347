// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package device defines the status vocabulary shared by producers and
// connectors: the device connection [Status], the upload backend
// [ServerStatus], and the per-device [Snapshot].
//
// Status and ServerStatus travel between processes as int32 ordinals.
// Ordinals are append-only: a value, once assigned, keeps its meaning
// forever, because a connector and a producer built from different
// versions of this package must still agree on what "3" means.
//
// Snapshot has a versioned fixed-layout encoding (see [Snapshot.WriteParcel]
// and [ReadSnapshot]) used as the reply body of GetDeviceStatus and
// StartRecording.
package device
