// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package parcel implements the fixed-layout binary bodies carried by
// producer transactions.
//
// A parcel is a flat little-endian byte sequence. Values are written
// and read back in the same order with no tags or padding:
//
//   - int32, int64: two's complement, little-endian
//   - float32: IEEE-754 bits, little-endian
//   - byte: one byte
//   - string: int32 byte length then UTF-8 bytes; length -1 encodes an
//     absent string
//   - byte array: int32 length then the bytes; length -1 encodes nil
//
// [Reader] never panics on short input. Every read past the end
// returns [ErrTruncated], and [Reader.Finish] reports bytes the caller
// never consumed. Transaction code turns both into protocol errors, so
// a peer that writes a different layout is detected instead of
// silently misread.
package parcel
