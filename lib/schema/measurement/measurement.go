// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package measurement defines the measurement record types produced by
// wearable and phone producers, together with their schemas and the
// standard topic set for each device kind.
package measurement

import (
	"embed"
	"fmt"
	"path"

	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

//go:embed schemas/*.avsc
var schemaFiles embed.FS

// Key identifies the device a measurement came from.
type Key struct {
	GroupID  string `cbor:"userId"`
	DeviceID string `cbor:"sourceId"`
}

type Acceleration struct {
	Time         float64 `cbor:"time"`
	TimeReceived float64 `cbor:"timeReceived"`
	X            float32 `cbor:"x"`
	Y            float32 `cbor:"y"`
	Z            float32 `cbor:"z"`
}

type BatteryLevel struct {
	Time         float64 `cbor:"time"`
	TimeReceived float64 `cbor:"timeReceived"`
	BatteryLevel float32 `cbor:"batteryLevel"`
}

type HeartRate struct {
	Time              float64 `cbor:"time"`
	TimeReceived      float64 `cbor:"timeReceived"`
	HeartRate         float32 `cbor:"heartRate"`
	HeartRateFiltered float32 `cbor:"heartRateFiltered"`
}

type Light struct {
	Time         float64 `cbor:"time"`
	TimeReceived float64 `cbor:"timeReceived"`
	Light        float32 `cbor:"light"`
}

// Schema returns one of the embedded schemas by file stem, e.g.
// "acceleration".
func Schema(name string) (record.Schema, error) {
	data, err := schemaFiles.ReadFile(path.Join("schemas", name+".avsc"))
	if err != nil {
		return record.Schema{}, fmt.Errorf("no embedded schema %q", name)
	}
	schema, err := record.ParseSchema(data)
	if err != nil {
		return record.Schema{}, fmt.Errorf("embedded schema %q: %w", name, err)
	}
	return schema, nil
}

func newTopic[V any](prefix, suffix, schemaName string) (*record.Topic[Key, V], error) {
	keySchema, err := Schema("measurement_key")
	if err != nil {
		return nil, err
	}
	valueSchema, err := Schema(schemaName)
	if err != nil {
		return nil, err
	}
	return record.NewTopic[Key, V](prefix+"_"+suffix, keySchema, valueSchema)
}

// WearableTopics are the streams of a wrist-worn device.
type WearableTopics struct {
	Acceleration *record.Topic[Key, Acceleration]
	Battery      *record.Topic[Key, BatteryLevel]
	HeartRate    *record.Topic[Key, HeartRate]
}

// NewWearableTopics builds the wearable topic set. prefix names the
// device model, e.g. "android_empatica_e4" gives
// "android_empatica_e4_acceleration".
func NewWearableTopics(prefix string) (*WearableTopics, error) {
	var topics WearableTopics
	var err error
	if topics.Acceleration, err = newTopic[Acceleration](prefix, "acceleration", "acceleration"); err != nil {
		return nil, err
	}
	if topics.Battery, err = newTopic[BatteryLevel](prefix, "battery_level", "battery_level"); err != nil {
		return nil, err
	}
	if topics.HeartRate, err = newTopic[HeartRate](prefix, "heart_rate", "heart_rate"); err != nil {
		return nil, err
	}
	return &topics, nil
}

func (t *WearableTopics) Codecs() []record.Codec {
	return []record.Codec{t.Acceleration, t.Battery, t.HeartRate}
}

// PhoneTopics are the streams of the handset's own sensors.
type PhoneTopics struct {
	Acceleration *record.Topic[Key, Acceleration]
	Battery      *record.Topic[Key, BatteryLevel]
	Light        *record.Topic[Key, Light]
}

func NewPhoneTopics(prefix string) (*PhoneTopics, error) {
	var topics PhoneTopics
	var err error
	if topics.Acceleration, err = newTopic[Acceleration](prefix, "acceleration", "acceleration"); err != nil {
		return nil, err
	}
	if topics.Battery, err = newTopic[BatteryLevel](prefix, "battery_level", "battery_level"); err != nil {
		return nil, err
	}
	if topics.Light, err = newTopic[Light](prefix, "light", "light"); err != nil {
		return nil, err
	}
	return &topics, nil
}

func (t *PhoneTopics) Codecs() []record.Codec {
	return []record.Codec{t.Acceleration, t.Battery, t.Light}
}

// DefaultPrefix returns the topic prefix used for a device kind when
// configuration does not name one.
func DefaultPrefix(kind device.Kind) string {
	if kind == device.Phone {
		return "android_phone"
	}
	return "android_empatica_e4"
}

// Registry returns a registry holding the standard topics for kind.
func Registry(kind device.Kind, prefix string) (*record.Registry, error) {
	var codecs []record.Codec
	switch kind {
	case device.Wearable:
		topics, err := NewWearableTopics(prefix)
		if err != nil {
			return nil, err
		}
		codecs = topics.Codecs()
	case device.Phone:
		topics, err := NewPhoneTopics(prefix)
		if err != nil {
			return nil, err
		}
		codecs = topics.Codecs()
	default:
		return nil, fmt.Errorf("no standard topics for device kind %s", kind)
	}
	registry := record.NewRegistry()
	if err := registry.Register(codecs...); err != nil {
		return nil, err
	}
	return registry, nil
}
