// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"math"

	"github.com/radarcns/sensorlink/lib/parcel"
)

// SnapshotVersion is the layout version written by [Snapshot.WriteParcel].
// Bump it (and keep reading the old one) when a field is added.
const SnapshotVersion int32 = 1

// Kind selects which measurement fields a snapshot carries.
type Kind int32

const (
	// Wearable covers wrist devices such as the Empatica E4 and the
	// Pebble 2: acceleration, battery, charging state, heart rate.
	Wearable Kind = 1
	// Phone covers the handset's own sensors: acceleration, battery,
	// ambient light.
	Phone Kind = 2
)

func (k Kind) String() string {
	switch k {
	case Wearable:
		return "wearable"
	case Phone:
		return "phone"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// ParseKind parses the configuration spelling of a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "wearable":
		return Wearable, nil
	case "phone":
		return Phone, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q (want wearable or phone)", s)
	}
}

// Tristate is a boolean that may be unknown. Wearables report charging
// state only once the vendor SDK has delivered a battery event.
type Tristate int8

const (
	Unknown Tristate = -1
	False   Tristate = 0
	True    Tristate = 1
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Snapshot is the state of one device at one point in time. It is a
// plain value: producers build a fresh one per query and connectors
// never modify what they receive. Float fields hold NaN when the
// device has not reported them.
type Snapshot struct {
	Kind   Kind
	Status Status

	Acceleration      [3]float32
	BatteryLevel      float32
	BatteryCharging   Tristate
	BatteryPlugged    Tristate
	HeartRate         float32
	HeartRateFiltered float32
	Light             float32
}

// NewSnapshot returns a snapshot of the given kind with every
// measurement unset.
func NewSnapshot(kind Kind, status Status) Snapshot {
	nan := float32(math.NaN())
	return Snapshot{
		Kind:              kind,
		Status:            status,
		Acceleration:      [3]float32{nan, nan, nan},
		BatteryLevel:      nan,
		BatteryCharging:   Unknown,
		BatteryPlugged:    Unknown,
		HeartRate:         nan,
		HeartRateFiltered: nan,
		Light:             nan,
	}
}

// HasAcceleration reports whether this kind of device measures
// acceleration.
func (s Snapshot) HasAcceleration() bool {
	return s.Kind == Wearable || s.Kind == Phone
}

// HasHeartRate reports whether this kind of device measures heart rate.
func (s Snapshot) HasHeartRate() bool {
	return s.Kind == Wearable
}

func (s Snapshot) String() string {
	switch s.Kind {
	case Wearable:
		return fmt.Sprintf("{status: %s, acceleration: %v, batteryLevel: %v, heartRate: %v, heartRateFiltered: %v}",
			s.Status, s.Acceleration, s.BatteryLevel, s.HeartRate, s.HeartRateFiltered)
	case Phone:
		return fmt.Sprintf("{status: %s, acceleration: %v, batteryLevel: %v, light: %v}",
			s.Status, s.Acceleration, s.BatteryLevel, s.Light)
	default:
		return fmt.Sprintf("{kind: %s, status: %s}", s.Kind, s.Status)
	}
}

// WriteParcel appends the snapshot to w.
//
// Layout: int32 version, int32 kind, int32 status, then per kind
//
//	wearable: float32 x3 acceleration, float32 battery, byte charging,
//	          byte plugged, float32 heart rate, float32 filtered heart rate
//	phone:    float32 x3 acceleration, float32 battery, float32 light
//
// Tristate bytes are 0xff (unknown), 0 or 1.
func (s Snapshot) WriteParcel(w *parcel.Writer) {
	w.WriteInt32(SnapshotVersion)
	w.WriteInt32(int32(s.Kind))
	w.WriteInt32(int32(s.Status))
	for _, axis := range s.Acceleration {
		w.WriteFloat32(axis)
	}
	w.WriteFloat32(s.BatteryLevel)
	switch s.Kind {
	case Wearable:
		w.WriteByte(byte(s.BatteryCharging))
		w.WriteByte(byte(s.BatteryPlugged))
		w.WriteFloat32(s.HeartRate)
		w.WriteFloat32(s.HeartRateFiltered)
	case Phone:
		w.WriteFloat32(s.Light)
	}
}

// ReadSnapshot reads a snapshot written by WriteParcel. Fields the kind
// does not carry come back unset (NaN / Unknown).
func ReadSnapshot(r *parcel.Reader) (Snapshot, error) {
	version, err := r.ReadInt32()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot version: %w", err)
	}
	if version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", version)
	}
	rawKind, err := r.ReadInt32()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot kind: %w", err)
	}
	kind := Kind(rawKind)
	if kind != Wearable && kind != Phone {
		return Snapshot{}, fmt.Errorf("unknown snapshot kind %d", rawKind)
	}
	rawStatus, err := r.ReadInt32()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot status: %w", err)
	}
	status, err := StatusFromOrdinal(rawStatus)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := NewSnapshot(kind, status)
	for i := range snapshot.Acceleration {
		if snapshot.Acceleration[i], err = r.ReadFloat32(); err != nil {
			return Snapshot{}, fmt.Errorf("reading acceleration: %w", err)
		}
	}
	if snapshot.BatteryLevel, err = r.ReadFloat32(); err != nil {
		return Snapshot{}, fmt.Errorf("reading battery level: %w", err)
	}

	switch kind {
	case Wearable:
		if snapshot.BatteryCharging, err = readTristate(r); err != nil {
			return Snapshot{}, fmt.Errorf("reading battery charging: %w", err)
		}
		if snapshot.BatteryPlugged, err = readTristate(r); err != nil {
			return Snapshot{}, fmt.Errorf("reading battery plugged: %w", err)
		}
		if snapshot.HeartRate, err = r.ReadFloat32(); err != nil {
			return Snapshot{}, fmt.Errorf("reading heart rate: %w", err)
		}
		if snapshot.HeartRateFiltered, err = r.ReadFloat32(); err != nil {
			return Snapshot{}, fmt.Errorf("reading filtered heart rate: %w", err)
		}
	case Phone:
		if snapshot.Light, err = r.ReadFloat32(); err != nil {
			return Snapshot{}, fmt.Errorf("reading light: %w", err)
		}
	}
	return snapshot, nil
}

func readTristate(r *parcel.Reader) (Tristate, error) {
	raw, err := r.ReadByte()
	if err != nil {
		return Unknown, err
	}
	switch value := Tristate(int8(raw)); value {
	case Unknown, False, True:
		return value, nil
	default:
		return Unknown, fmt.Errorf("invalid tristate byte 0x%02x", raw)
	}
}
