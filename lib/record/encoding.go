// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"

	"github.com/radarcns/sensorlink/lib/codec"
)

// CBOR simple values null (0xf6) and undefined (0xf7). Decoding either
// into a Go scalar silently yields the zero value, so they are treated
// as a missing field instead.
const (
	cborNull      = 0xf6
	cborUndefined = 0xf7
)

// fieldMap splits a record blob into raw per-field values.
func fieldMap(data []byte) (map[string]codec.RawMessage, error) {
	var fields map[string]codec.RawMessage
	if err := codec.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
	}
	if fields == nil {
		return nil, ErrNotRecord
	}
	return fields, nil
}

// checkField decodes raw into the Go type of the schema type, which
// rejects shapes the schema does not allow (a string where a long is
// expected, a float in an int field).
func checkField(fieldType FieldType, raw codec.RawMessage) error {
	if len(raw) == 1 && (raw[0] == cborNull || raw[0] == cborUndefined) {
		return ErrMissingField
	}
	var err error
	switch fieldType {
	case TypeInt:
		var v int32
		err = codec.Unmarshal(raw, &v)
	case TypeLong:
		var v int64
		err = codec.Unmarshal(raw, &v)
	case TypeFloat, TypeDouble:
		var v float64
		err = codec.Unmarshal(raw, &v)
	case TypeString:
		var v string
		err = codec.Unmarshal(raw, &v)
	case TypeBoolean:
		var v bool
		err = codec.Unmarshal(raw, &v)
	case TypeBytes:
		var v []byte
		err = codec.Unmarshal(raw, &v)
	default:
		return fmt.Errorf("%w: unsupported schema type %q", ErrFieldType, fieldType)
	}
	if err != nil {
		return fmt.Errorf("%w: want %s: %v", ErrFieldType, fieldType, err)
	}
	return nil
}

// encode marshals value and keeps only the schema's fields.
func encode(topic, part string, schema Schema, value any) ([]byte, error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return nil, &FormatError{Topic: topic, Part: part, Err: err}
	}
	fields, err := fieldMap(data)
	if err != nil {
		return nil, &FormatError{Topic: topic, Part: part, Err: err}
	}
	projected := make(map[string]codec.RawMessage, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, ok := fields[field.Name]
		if !ok {
			return nil, &FormatError{Topic: topic, Part: part, Field: field.Name, Err: ErrMissingField}
		}
		if err := checkField(field.Type, raw); err != nil {
			return nil, &FormatError{Topic: topic, Part: part, Field: field.Name, Err: err}
		}
		projected[field.Name] = raw
	}
	encoded, err := codec.Marshal(projected)
	if err != nil {
		return nil, &FormatError{Topic: topic, Part: part, Err: err}
	}
	return encoded, nil
}

// decode validates data against schema and unmarshals it into target.
func decode(topic, part string, schema Schema, data []byte, target any) error {
	fields, err := fieldMap(data)
	if err != nil {
		return &FormatError{Topic: topic, Part: part, Err: err}
	}
	for _, field := range schema.Fields {
		raw, ok := fields[field.Name]
		if !ok {
			return &FormatError{Topic: topic, Part: part, Field: field.Name, Err: ErrMissingField}
		}
		if err := checkField(field.Type, raw); err != nil {
			return &FormatError{Topic: topic, Part: part, Field: field.Name, Err: err}
		}
	}
	if err := codec.Unmarshal(data, target); err != nil {
		return &FormatError{Topic: topic, Part: part, Err: err}
	}
	return nil
}
