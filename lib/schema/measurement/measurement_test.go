// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package measurement

import (
	"testing"

	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

func TestEmbeddedSchemasParse(t *testing.T) {
	for _, name := range []string{"measurement_key", "acceleration", "battery_level", "heart_rate", "light"} {
		if _, err := Schema(name); err != nil {
			t.Errorf("Schema(%q): %v", name, err)
		}
	}
	if _, err := Schema("gyroscope"); err == nil {
		t.Error("Schema of an unknown name should fail")
	}
}

func TestWearableTopicsRoundtrip(t *testing.T) {
	topics, err := NewWearableTopics("android_empatica_e4")
	if err != nil {
		t.Fatalf("NewWearableTopics: %v", err)
	}
	if topics.HeartRate.Name() != "android_empatica_e4_heart_rate" {
		t.Errorf("heart rate topic name = %q", topics.HeartRate.Name())
	}
	if topics.HeartRate.ValueType() != "org.radarcns.passive.HeartRate" {
		t.Errorf("ValueType = %q", topics.HeartRate.ValueType())
	}

	want := record.Record[Key, HeartRate]{
		Offset: 12,
		Key:    Key{GroupID: "hyve", DeviceID: "A01B2C"},
		Value:  HeartRate{Time: 1700000000.5, TimeReceived: 1700000001, HeartRate: 72, HeartRateFiltered: 70.5},
	}
	key, value, err := topics.HeartRate.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := topics.HeartRate.Decode(want.Offset, key, value)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRegistryPerKind(t *testing.T) {
	wearable, err := Registry(device.Wearable, "android_pebble_2")
	if err != nil {
		t.Fatalf("Registry(wearable): %v", err)
	}
	want := []string{"android_pebble_2_acceleration", "android_pebble_2_battery_level", "android_pebble_2_heart_rate"}
	names := wearable.Names()
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	phone, err := Registry(device.Phone, DefaultPrefix(device.Phone))
	if err != nil {
		t.Fatalf("Registry(phone): %v", err)
	}
	if _, ok := phone.Lookup("android_phone_light"); !ok {
		t.Error("phone registry has no light topic")
	}

	if _, err := Registry(device.Kind(9), "x"); err == nil {
		t.Error("Registry of an unknown kind should fail")
	}
}
