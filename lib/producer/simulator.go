// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/radarcns/sensorlink/lib/clock"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
)

// DefaultSampleInterval is how often a Simulator steps.
const DefaultSampleInterval = time.Second

// SimulatorOptions configure a Simulator.
type SimulatorOptions struct {
	// Prefix selects the topic names; empty uses
	// measurement.DefaultPrefix for the device kind.
	Prefix   string
	Key      measurement.Key
	Interval time.Duration
	Clock    clock.Clock
}

// Simulator stands in for sensor hardware. Each step advances a
// scanning device to Connecting and then Connected, and once connected
// appends one sample to every topic of the device kind.
type Simulator struct {
	device   *Device
	key      measurement.Key
	interval time.Duration
	clock    clock.Clock

	wearable *measurement.WearableTopics
	phone    *measurement.PhoneTopics

	samples int
}

// NewSimulator builds the topic set for d's kind and registers it with
// d's registry.
func NewSimulator(d *Device, options SimulatorOptions) (*Simulator, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Interval <= 0 {
		options.Interval = DefaultSampleInterval
	}

	snapshot, _ := d.DeviceStatus(context.Background())
	kind := snapshot.Kind
	if options.Prefix == "" {
		options.Prefix = measurement.DefaultPrefix(kind)
	}

	simulator := &Simulator{
		device:   d,
		key:      options.Key,
		interval: options.Interval,
		clock:    options.Clock,
	}
	switch kind {
	case device.Wearable:
		topics, err := measurement.NewWearableTopics(options.Prefix)
		if err != nil {
			return nil, err
		}
		if err := d.registry.Register(topics.Codecs()...); err != nil {
			return nil, err
		}
		simulator.wearable = topics
	case device.Phone:
		topics, err := measurement.NewPhoneTopics(options.Prefix)
		if err != nil {
			return nil, err
		}
		if err := d.registry.Register(topics.Codecs()...); err != nil {
			return nil, err
		}
		simulator.phone = topics
	default:
		return nil, fmt.Errorf("cannot simulate device kind %s", kind)
	}
	return simulator, nil
}

// Run steps the simulator every interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Step(); err != nil {
				return err
			}
		}
	}
}

// Step advances the simulation by one interval.
func (s *Simulator) Step() error {
	switch s.device.Status() {
	case device.Ready:
		s.device.SetStatus(device.Connecting)
	case device.Connecting:
		s.device.SetStatus(device.Connected)
	case device.Connected:
		return s.sample()
	}
	return nil
}

func (s *Simulator) sample() error {
	s.samples++
	now := float64(s.clock.Now().UnixNano()) / 1e9
	phase := float64(s.samples) / 10

	x := float32(math.Sin(phase) * 0.1)
	y := float32(math.Cos(phase) * 0.1)
	z := float32(1 + math.Sin(phase/3)*0.02)
	battery := float32(max(0, 1-float64(s.samples)/10000))

	acceleration := measurement.Acceleration{Time: now, TimeReceived: now, X: x, Y: y, Z: z}
	batteryLevel := measurement.BatteryLevel{Time: now, TimeReceived: now, BatteryLevel: battery}

	if s.wearable != nil {
		heartRate := float32(65 + 8*math.Sin(phase/5))
		filtered := float32(65 + 6*math.Sin(phase/5))
		if _, err := s.device.Append(s.wearable.Acceleration, s.key, acceleration); err != nil {
			return err
		}
		if _, err := s.device.Append(s.wearable.Battery, s.key, batteryLevel); err != nil {
			return err
		}
		if _, err := s.device.Append(s.wearable.HeartRate, s.key, measurement.HeartRate{
			Time: now, TimeReceived: now, HeartRate: heartRate, HeartRateFiltered: filtered,
		}); err != nil {
			return err
		}
		s.device.UpdateSnapshot(func(snapshot *device.Snapshot) {
			snapshot.Acceleration = [3]float32{x, y, z}
			snapshot.BatteryLevel = battery
			snapshot.BatteryCharging = device.False
			snapshot.BatteryPlugged = device.False
			snapshot.HeartRate = heartRate
			snapshot.HeartRateFiltered = filtered
		})
		return nil
	}

	light := float32(300 + 50*math.Sin(phase/7))
	if _, err := s.device.Append(s.phone.Acceleration, s.key, acceleration); err != nil {
		return err
	}
	if _, err := s.device.Append(s.phone.Battery, s.key, batteryLevel); err != nil {
		return err
	}
	if _, err := s.device.Append(s.phone.Light, s.key, measurement.Light{
		Time: now, TimeReceived: now, Light: light,
	}); err != nil {
		return err
	}
	s.device.UpdateSnapshot(func(snapshot *device.Snapshot) {
		snapshot.Acceleration = [3]float32{x, y, z}
		snapshot.BatteryLevel = battery
		snapshot.Light = light
	})
	return nil
}

// Wearable returns the wearable topics, or nil for a phone.
func (s *Simulator) Wearable() *measurement.WearableTopics { return s.wearable }

// Phone returns the phone topics, or nil for a wearable.
func (s *Simulator) Phone() *measurement.PhoneTopics { return s.phone }
