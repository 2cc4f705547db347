// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package producer defines what a device-data producer offers and
// provides its three renditions:
//
//   - [Device] is the producer itself, an in-memory device model with
//     a status broadcast hub and a bounded record store per topic.
//   - [Register] exposes a Producer on a transact.Server, the stub side
//     of the transaction protocol.
//   - [Remote] is the proxy side: it implements Producer by sending
//     transactions through a transact.Client.
//
// A connector holding a Device calls it directly. A connector holding
// a transact.Client wraps it with [NewRemote]. Both satisfy [Producer],
// so the connector's operations are the same either way.
//
// [Simulator] drives a Device with synthetic samples so a producer
// process can run without sensor hardware.
package producer
