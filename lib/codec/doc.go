// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides sensorlink's standard CBOR encoding
// configuration.
//
// CBOR carries everything that is self-describing: the transaction
// envelope exchanged over producer sockets, the status event stream,
// and the measurement blobs produced by lib/record. Bodies with a
// fixed, bit-exact layout (device snapshots, the GetRecords reply) are
// written with lib/parcel instead and travel inside the envelope as
// byte strings.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same record always encodes to the same bytes, which keeps schema
// fingerprints and test fixtures stable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
