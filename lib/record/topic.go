// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"errors"
	"fmt"
)

// Record is one measurement: a device key, a typed value, and the
// producer-assigned offset. Offsets increase monotonically per topic,
// so a larger offset is a more recent record.
type Record[K, V any] struct {
	Offset int64
	Key    K
	Value  V
}

// Entry is a Record with its key and value types erased. Producers
// store entries; connectors convert them back with [Topic.Convert].
type Entry struct {
	Offset int64
	Key    any
	Value  any
}

// Codec is the type-erased view of a Topic used by code that moves
// records between processes without knowing their Go types.
type Codec interface {
	// Name is the topic name.
	Name() string
	// Fingerprint identifies the key/value schema pair.
	Fingerprint() string
	// EncodeEntry encodes the entry's key and value. The entry must
	// hold this topic's Go types.
	EncodeEntry(entry Entry) (key, value []byte, err error)
	// DecodeEntry decodes key and value blobs into an Entry holding
	// this topic's Go types.
	DecodeEntry(offset int64, key, value []byte) (Entry, error)
}

// Topic binds a measurement stream name to its schemas and Go types.
type Topic[K, V any] struct {
	name        string
	keySchema   Schema
	valueSchema Schema
	fingerprint string
}

// NewTopic validates both schemas and returns the topic.
func NewTopic[K, V any](name string, keySchema, valueSchema Schema) (*Topic[K, V], error) {
	if name == "" {
		return nil, errors.New("topic name is required")
	}
	if err := keySchema.Validate(); err != nil {
		return nil, fmt.Errorf("topic %q key schema: %w", name, err)
	}
	if err := valueSchema.Validate(); err != nil {
		return nil, fmt.Errorf("topic %q value schema: %w", name, err)
	}
	return &Topic[K, V]{
		name:        name,
		keySchema:   keySchema,
		valueSchema: valueSchema,
		fingerprint: pairFingerprint(keySchema, valueSchema),
	}, nil
}

func (t *Topic[K, V]) Name() string        { return t.name }
func (t *Topic[K, V]) KeySchema() Schema   { return t.keySchema }
func (t *Topic[K, V]) ValueSchema() Schema { return t.valueSchema }
func (t *Topic[K, V]) Fingerprint() string { return t.fingerprint }

// ValueType identifies the kind of measurement the topic carries.
func (t *Topic[K, V]) ValueType() string { return t.valueSchema.FullName() }

func (t *Topic[K, V]) EncodeKey(key K) ([]byte, error) {
	return encode(t.name, "key", t.keySchema, key)
}

func (t *Topic[K, V]) EncodeValue(value V) ([]byte, error) {
	return encode(t.name, "value", t.valueSchema, value)
}

func (t *Topic[K, V]) DecodeKey(data []byte) (K, error) {
	var key K
	err := decode(t.name, "key", t.keySchema, data, &key)
	return key, err
}

func (t *Topic[K, V]) DecodeValue(data []byte) (V, error) {
	var value V
	err := decode(t.name, "value", t.valueSchema, data, &value)
	return value, err
}

// Encode encodes both halves of a record.
func (t *Topic[K, V]) Encode(r Record[K, V]) (key, value []byte, err error) {
	if key, err = t.EncodeKey(r.Key); err != nil {
		return nil, nil, err
	}
	if value, err = t.EncodeValue(r.Value); err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

// Decode decodes both halves of a record.
func (t *Topic[K, V]) Decode(offset int64, key, value []byte) (Record[K, V], error) {
	decodedKey, err := t.DecodeKey(key)
	if err != nil {
		return Record[K, V]{}, err
	}
	decodedValue, err := t.DecodeValue(value)
	if err != nil {
		return Record[K, V]{}, err
	}
	return Record[K, V]{Offset: offset, Key: decodedKey, Value: decodedValue}, nil
}

// Entry erases the record's types.
func (t *Topic[K, V]) Entry(r Record[K, V]) Entry {
	return Entry{Offset: r.Offset, Key: r.Key, Value: r.Value}
}

// Convert restores the types of an entry produced for this topic.
func (t *Topic[K, V]) Convert(entry Entry) (Record[K, V], error) {
	key, ok := entry.Key.(K)
	if !ok {
		return Record[K, V]{}, &FormatError{Topic: t.name, Part: "key",
			Err: fmt.Errorf("%w: %T", ErrGoType, entry.Key)}
	}
	value, ok := entry.Value.(V)
	if !ok {
		return Record[K, V]{}, &FormatError{Topic: t.name, Part: "value",
			Err: fmt.Errorf("%w: %T", ErrGoType, entry.Value)}
	}
	return Record[K, V]{Offset: entry.Offset, Key: key, Value: value}, nil
}

func (t *Topic[K, V]) EncodeEntry(entry Entry) (key, value []byte, err error) {
	r, err := t.Convert(entry)
	if err != nil {
		return nil, nil, err
	}
	return t.Encode(r)
}

func (t *Topic[K, V]) DecodeEntry(offset int64, key, value []byte) (Entry, error) {
	r, err := t.Decode(offset, key, value)
	if err != nil {
		return Entry{}, err
	}
	return t.Entry(r), nil
}
