// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/radarcns/sensorlink/lib/broadcast"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

// DefaultCapacity is the number of records a Device keeps per topic.
const DefaultCapacity = 1024

// ErrUnknownTopic is returned for a topic the device does not record.
var ErrUnknownTopic = errors.New("unknown topic")

// DeviceOptions configure a Device.
type DeviceOptions struct {
	Kind device.Kind
	// Name is the initial display name.
	Name string
	// Registry lists the topics the device records. Records and
	// Append reject topics not registered here.
	Registry *record.Registry
	// Capacity bounds each topic's store; older records are dropped.
	Capacity int
	Logger   *slog.Logger
}

// DefaultStatus is the status a new device starts in. Phones measure
// their own sensors and start connected; wearables start disconnected.
func DefaultStatus(kind device.Kind) device.Status {
	if kind == device.Phone {
		return device.Connected
	}
	return device.Disconnected
}

// Device is an in-process producer. It keeps the latest snapshot, the
// most recent records of each topic, and publishes every status change
// on its hub. Safe for concurrent use.
type Device struct {
	logger   *slog.Logger
	hub      *broadcast.Hub
	registry *record.Registry
	capacity int

	mu           sync.Mutex
	snapshot     device.Snapshot
	name         string
	serverStatus device.ServerStatus
	params       Params
	stores       map[string]*topicStore
}

// topicStore is a ring of entries in offset order.
type topicStore struct {
	entries []record.Entry
	start   int
	next    int64
}

func NewDevice(options DeviceOptions) *Device {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Capacity <= 0 {
		options.Capacity = DefaultCapacity
	}
	if options.Registry == nil {
		options.Registry = record.NewRegistry()
	}
	return &Device{
		logger:       options.Logger,
		hub:          broadcast.NewHub(options.Logger),
		registry:     options.Registry,
		capacity:     options.Capacity,
		snapshot:     device.NewSnapshot(options.Kind, DefaultStatus(options.Kind)),
		name:         options.Name,
		serverStatus: device.ServerDisconnected,
		stores:       make(map[string]*topicStore),
	}
}

// Subscribe implements broadcast.Channel.
func (d *Device) Subscribe(handler func(device.StatusEvent)) (func(), error) {
	return d.hub.Subscribe(handler)
}

func (d *Device) DeviceStatus(ctx context.Context) (device.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot, nil
}

func (d *Device) Records(ctx context.Context, topic record.Codec, limit int) ([]record.Entry, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative record limit %d", limit)
	}
	if _, ok := d.registry.Lookup(topic.Name()); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTopic, topic.Name())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	store := d.stores[topic.Name()]
	if store == nil || limit == 0 {
		return []record.Entry{}, nil
	}
	count := min(limit, len(store.entries))
	result := make([]record.Entry, 0, count)
	for i := 0; i < count; i++ {
		// Walk backwards from the newest entry.
		index := (store.start + len(store.entries) - 1 - i) % len(store.entries)
		result = append(result, store.entries[index])
	}
	return result, nil
}

// StartRecording moves a disconnected device to Ready (scanning). A
// device already recording is left as it is.
func (d *Device) StartRecording(ctx context.Context) (device.Snapshot, error) {
	d.mu.Lock()
	if d.snapshot.Status != device.Disconnected {
		snapshot := d.snapshot
		d.mu.Unlock()
		return snapshot, nil
	}
	d.mu.Unlock()

	d.SetStatus(device.Ready)
	return d.DeviceStatus(ctx)
}

// StopRecording moves the device through Disconnecting to
// Disconnected. Stopping a disconnected device does nothing.
func (d *Device) StopRecording(ctx context.Context) error {
	if d.Status() == device.Disconnected {
		return nil
	}
	d.SetStatus(device.Disconnecting)
	d.SetStatus(device.Disconnected)
	return nil
}

func (d *Device) ServerStatus(ctx context.Context) (device.ServerStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serverStatus, nil
}

// Status returns the current device status.
func (d *Device) Status() device.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot.Status
}

// SetStatus records a status transition and publishes it with the
// device name. Every call publishes, so callers report transitions,
// not polls. Disconnecting clears the sensor readings.
func (d *Device) SetStatus(status device.Status) {
	d.mu.Lock()
	if status == device.Disconnected {
		d.snapshot = device.NewSnapshot(d.snapshot.Kind, status)
	} else {
		d.snapshot.Status = status
	}
	event := device.StatusEvent{Status: status, Name: d.name}
	// Publish under the lock so concurrent transitions reach
	// subscribers in the order they were applied.
	d.hub.Publish(event)
	d.mu.Unlock()

	d.logger.Debug("device status changed", "status", status, "name", event.Name)
}

func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// SetName changes the display name reported with later status events.
func (d *Device) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// UpdateSnapshot applies update to the current snapshot. The status
// and kind cannot be changed this way; use SetStatus.
func (d *Device) UpdateSnapshot(update func(*device.Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, status := d.snapshot.Kind, d.snapshot.Status
	update(&d.snapshot)
	d.snapshot.Kind, d.snapshot.Status = kind, status
}

func (d *Device) SetServerStatus(status device.ServerStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serverStatus = status
}

// Params returns the parameters of the latest bind.
func (d *Device) Params() Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

func (d *Device) SetParams(params Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = params
}

// Append stores a record on topic and returns its offset. key and
// value must be topic's Go types.
func (d *Device) Append(topic record.Codec, key, value any) (int64, error) {
	if _, ok := d.registry.Lookup(topic.Name()); !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownTopic, topic.Name())
	}
	// Encoding checks the Go types and the schema before storing.
	if _, _, err := topic.EncodeEntry(record.Entry{Key: key, Value: value}); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	store := d.stores[topic.Name()]
	if store == nil {
		store = &topicStore{}
		d.stores[topic.Name()] = store
	}
	entry := record.Entry{Offset: store.next, Key: key, Value: value}
	store.next++
	if len(store.entries) < d.capacity {
		store.entries = append(store.entries, entry)
	} else {
		store.entries[store.start] = entry
		store.start = (store.start + 1) % d.capacity
	}
	return entry.Offset, nil
}

// Close ends every status subscription.
func (d *Device) Close() {
	d.hub.Close()
}
