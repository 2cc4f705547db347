// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package transact implements the transaction protocol between a
// connector and a producer running in another process.
//
// A transaction is one Unix socket connection. The client writes a CBOR
// [Request] carrying a [Code] and a parcel body; the server dispatches
// it to the [Handler] registered for the code and writes one CBOR
// [Response] back, unless the request was sent with [FlagOneWay].
// Bodies are [parcel] buffers: bit-exact little-endian layouts, so the
// reply reader must consume exactly what the handler wrote.
//
// Three system transactions are built into every [Server]:
//
//   - [Ping] answers immediately. Binders use it to decide whether a
//     producer is listening.
//   - [LinkToDeath] acknowledges, then holds the connection open for
//     as long as the server runs. The client side sees the connection
//     drop when the producer exits or crashes, and that is the death
//     notification.
//   - [SubscribeStatus] acknowledges, then streams CBOR
//     device.StatusEvent values from the server's status source until
//     either side goes away. [Client] implements broadcast.Channel on
//     top of it.
//
// Client errors fall into three types: [*TransportError] (dial, write,
// read, timeout), [*ProtocolError] (malformed or mismatched reply,
// unread reply bytes) and [*RemoteError] (the handler failed). A
// *record.FormatError returned while reading a reply passes through
// unchanged: the transaction itself succeeded.
package transact
