// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
	"github.com/radarcns/sensorlink/lib/testutil"
	"github.com/radarcns/sensorlink/lib/transact"
)

// serveDevice exposes d on a fresh socket and returns a Remote for it.
func serveDevice(t *testing.T, d *Device, registry *record.Registry) *Remote {
	t.Helper()
	socketPath := testutil.SocketPath(t, "producer.sock")
	server := transact.NewServer(socketPath, d, testLogger())
	Register(server, d, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return")
	})

	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear", socketPath)
		}
		runtime.Gosched()
	}

	client := transact.NewClient(socketPath, transact.ClientOptions{
		CallTimeout: 5 * time.Second,
		Logger:      testLogger(),
	})
	return NewRemote(client)
}

func TestRemoteDeviceStatus(t *testing.T) {
	d, _, registry := newWearable(t, 0)
	d.UpdateSnapshot(func(snapshot *device.Snapshot) {
		snapshot.HeartRate = 71.5
		snapshot.BatteryCharging = device.True
	})
	remote := serveDevice(t, d, registry)

	snapshot, err := remote.DeviceStatus(context.Background())
	if err != nil {
		t.Fatalf("DeviceStatus: %v", err)
	}
	if snapshot.Kind != device.Wearable || snapshot.Status != device.Disconnected {
		t.Errorf("snapshot = %v", snapshot)
	}
	if snapshot.HeartRate != 71.5 || snapshot.BatteryCharging != device.True {
		t.Errorf("readings not carried: %v", snapshot)
	}
	if !math.IsNaN(float64(snapshot.Light)) {
		t.Errorf("unset light = %v, want NaN", snapshot.Light)
	}
}

func TestRemoteRecordingAndStatusStream(t *testing.T) {
	d, _, registry := newWearable(t, 0)
	remote := serveDevice(t, d, registry)

	events := make(chan device.StatusEvent, 8)
	unsubscribe, err := remote.Subscribe(func(event device.StatusEvent) { events <- event })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	snapshot, err := remote.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if snapshot.Status != device.Ready {
		t.Errorf("StartRecording status = %v, want Ready", snapshot.Status)
	}
	if event := testutil.RequireReceive(t, events, 5*time.Second, "Ready event"); event.Status != device.Ready {
		t.Errorf("event = %+v, want Ready", event)
	}

	if err := remote.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	for _, want := range []device.Status{device.Disconnecting, device.Disconnected} {
		if event := testutil.RequireReceive(t, events, 5*time.Second, "%v event", want); event.Status != want {
			t.Errorf("event = %+v, want %v", event, want)
		}
	}
}

func TestRemoteServerStatus(t *testing.T) {
	d, _, registry := newWearable(t, 0)
	d.SetServerStatus(device.ServerUploading)
	remote := serveDevice(t, d, registry)

	status, err := remote.ServerStatus(context.Background())
	if err != nil {
		t.Fatalf("ServerStatus: %v", err)
	}
	if status != device.ServerUploading {
		t.Errorf("ServerStatus = %v, want uploading", status)
	}
}

func TestRemoteRecords(t *testing.T) {
	d, topics, registry := newWearable(t, 0)
	appendHeartRates(t, d, topics.HeartRate, 4)
	remote := serveDevice(t, d, registry)

	entries, err := remote.Records(context.Background(), topics.HeartRate, 2)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i, wantOffset := range []int64{3, 2} {
		r, err := topics.HeartRate.Convert(entries[i])
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
		if r.Offset != wantOffset || r.Key != testKey || r.Value.HeartRate != float32(60+wantOffset) {
			t.Errorf("entry %d = %+v", i, r)
		}
	}
}

func TestRemoteRecordsUnknownTopic(t *testing.T) {
	d, _, registry := newWearable(t, 0)
	remote := serveDevice(t, d, registry)

	phone, err := measurement.NewPhoneTopics("phone")
	if err != nil {
		t.Fatalf("NewPhoneTopics: %v", err)
	}
	_, err = remote.Records(context.Background(), phone.Light, 5)
	var remoteError *transact.RemoteError
	if !errors.As(err, &remoteError) {
		t.Fatalf("got %v, want *transact.RemoteError", err)
	}
}

type strictHeartRate struct {
	HeartRate  float32 `cbor:"heartRate"`
	Confidence float32 `cbor:"confidence"`
}

func TestRemoteRecordsSchemaMismatchIsFormatError(t *testing.T) {
	d, topics, registry := newWearable(t, 0)
	appendHeartRates(t, d, topics.HeartRate, 1)
	remote := serveDevice(t, d, registry)

	valueSchema, err := record.ParseSchema([]byte(`{
		"type": "record",
		"name": "StrictHeartRate",
		"fields": [
			{"name": "heartRate", "type": "float"},
			{"name": "confidence", "type": "float"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	strict, err := record.NewTopic[measurement.Key, strictHeartRate](
		topics.HeartRate.Name(), topics.HeartRate.KeySchema(), valueSchema)
	if err != nil {
		t.Fatalf("NewTopic: %v", err)
	}

	_, err = remote.Records(context.Background(), strict, 1)
	var formatError *record.FormatError
	if !errors.As(err, &formatError) {
		t.Fatalf("got %v, want *record.FormatError", err)
	}
	if formatError.Field != "confidence" || !errors.Is(err, record.ErrMissingField) {
		t.Errorf("FormatError = %v, want missing confidence", formatError)
	}
}

func TestRemoteRecordsNegativeLimit(t *testing.T) {
	remote := NewRemote(transact.NewClient("/nonexistent.sock", transact.ClientOptions{}))
	topics, err := measurement.NewWearableTopics("test")
	if err != nil {
		t.Fatalf("NewWearableTopics: %v", err)
	}
	if _, err := remote.Records(context.Background(), topics.HeartRate, -1); err == nil {
		t.Error("negative limit accepted")
	}
}

func TestGetRecordsWireLayout(t *testing.T) {
	d, topics, registry := newWearable(t, 0)
	appendHeartRates(t, d, topics.HeartRate, 2)

	request := parcel.NewWriter(32)
	request.WriteString(topics.HeartRate.Name())
	request.WriteInt32(5)

	reader := parcel.NewReader(request.Bytes())
	reply := parcel.NewWriter(64)
	if err := serveRecords(context.Background(), d, registry, reader, reply); err != nil {
		t.Fatalf("serveRecords: %v", err)
	}
	if err := reader.Finish(); err != nil {
		t.Fatalf("request not fully consumed: %v", err)
	}

	var want bytes.Buffer
	writeInt32 := func(v int32) { binary.Write(&want, binary.LittleEndian, v) }
	writeInt32(2)
	for _, offset := range []int64{1, 0} {
		key, err := topics.HeartRate.EncodeKey(testKey)
		if err != nil {
			t.Fatalf("EncodeKey: %v", err)
		}
		value, err := topics.HeartRate.EncodeValue(measurement.HeartRate{
			Time: float64(offset), TimeReceived: float64(offset), HeartRate: float32(60 + offset), HeartRateFiltered: 60,
		})
		if err != nil {
			t.Fatalf("EncodeValue: %v", err)
		}
		binary.Write(&want, binary.LittleEndian, offset)
		writeInt32(int32(len(key)))
		want.Write(key)
		writeInt32(int32(len(value)))
		want.Write(value)
	}

	if !bytes.Equal(reply.Bytes(), want.Bytes()) {
		t.Errorf("GetRecords reply\n got % x\nwant % x", reply.Bytes(), want.Bytes())
	}
}

func TestGetRecordsRequestLayout(t *testing.T) {
	request := parcel.NewWriter(16)
	request.WriteString("hr")
	request.WriteInt32(3)

	want := []byte{
		2, 0, 0, 0, 'h', 'r', // string: int32 length + UTF-8
		3, 0, 0, 0, // int32 limit
	}
	if !bytes.Equal(request.Bytes(), want) {
		t.Errorf("request = % x, want % x", request.Bytes(), want)
	}
}
