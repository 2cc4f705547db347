// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField: a schema field is absent or null in the blob.
	ErrMissingField = errors.New("missing field")
	// ErrFieldType: a field's encoded shape does not match its schema
	// type.
	ErrFieldType = errors.New("field type mismatch")
	// ErrNotRecord: the blob is not a CBOR map.
	ErrNotRecord = errors.New("not a record")
	// ErrGoType: an entry holds a Go value of the wrong type for the
	// topic.
	ErrGoType = errors.New("unexpected Go type")
)

// FormatError reports a record that could not be encoded or decoded
// against its topic's schemas. It never indicates a connection
// problem: the transaction that carried the record completed.
type FormatError struct {
	Topic string
	// Part is "key" or "value".
	Part string
	// Field is the offending schema field, if one was identified.
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record format: topic %q %s field %q: %v", e.Topic, e.Part, e.Field, e.Err)
	}
	return fmt.Sprintf("record format: topic %q %s: %v", e.Topic, e.Part, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
