// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package record encodes and decodes measurement records against a
// pair of schemas.
//
// A [Topic] names a measurement stream and binds a key [Schema] and a
// value [Schema] to Go types K and V. Encoding marshals a key or value
// to a CBOR map holding exactly the schema's fields. Decoding accepts
// any CBOR map that has every schema field with a matching shape:
// extra fields are ignored so producers can add fields without
// breaking older connectors, and missing or mistyped fields fail with
// a [*FormatError].
//
// Schemas are Avro-style JSON documents. They may contain comments
// (JSONC), which keeps field documentation next to the field:
//
//	{
//	  "type": "record",
//	  "name": "BatteryLevel",
//	  "namespace": "org.radarcns.passive",
//	  "fields": [
//	    {"name": "time", "type": "double"},   // seconds since epoch
//	    {"name": "batteryLevel", "type": "float"}
//	  ]
//	}
//
// Everything here is stateless. Topics are immutable after
// construction and safe for concurrent use; [Registry] guards its own
// map.
//
// Cross-process code does not know K and V, so Topic also implements
// the type-erased [Codec] interface over [Entry] values.
package record
