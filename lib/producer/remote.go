// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"context"
	"fmt"
	"math"

	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/transact"
)

// Remote is a Producer in another process, reached through a
// transact.Client.
type Remote struct {
	client *transact.Client
}

func NewRemote(client *transact.Client) *Remote {
	return &Remote{client: client}
}

// Client returns the underlying transaction client.
func (r *Remote) Client() *transact.Client { return r.client }

// Subscribe implements broadcast.Channel through the status stream.
func (r *Remote) Subscribe(handler func(device.StatusEvent)) (func(), error) {
	return r.client.Subscribe(handler)
}

func (r *Remote) DeviceStatus(ctx context.Context) (device.Snapshot, error) {
	return r.snapshotCall(ctx, transact.GetDeviceStatus)
}

func (r *Remote) StartRecording(ctx context.Context) (device.Snapshot, error) {
	return r.snapshotCall(ctx, transact.StartRecording)
}

func (r *Remote) snapshotCall(ctx context.Context, code transact.Code) (device.Snapshot, error) {
	var snapshot device.Snapshot
	err := r.client.Call(ctx, code, nil, func(reply *parcel.Reader) error {
		var err error
		snapshot, err = device.ReadSnapshot(reply)
		return err
	})
	return snapshot, err
}

// StopRecording is sent one-way; the resulting status changes arrive
// on the status stream.
func (r *Remote) StopRecording(ctx context.Context) error {
	return r.client.Send(ctx, transact.StopRecording, nil)
}

func (r *Remote) ServerStatus(ctx context.Context) (device.ServerStatus, error) {
	var status device.ServerStatus
	err := r.client.Call(ctx, transact.GetServerStatus, nil, func(reply *parcel.Reader) error {
		ordinal, err := reply.ReadInt32()
		if err != nil {
			return err
		}
		status, err = device.ServerStatusFromOrdinal(ordinal)
		return err
	})
	return status, err
}

// Records fetches entries over GetRecords and decodes them with topic.
// A record that does not match topic's schemas fails the whole call
// with a *record.FormatError.
func (r *Remote) Records(ctx context.Context, topic record.Codec, limit int) ([]record.Entry, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative record limit %d", limit)
	}
	limit = min(limit, math.MaxInt32)

	request := parcel.NewWriter(len(topic.Name()) + 8)
	request.WriteString(topic.Name())
	request.WriteInt32(int32(limit))

	var entries []record.Entry
	err := r.client.Call(ctx, transact.GetRecords, request.Bytes(), func(reply *parcel.Reader) error {
		count, err := reply.ReadInt32()
		if err != nil {
			return err
		}
		if count < 0 {
			return fmt.Errorf("negative record count %d", count)
		}
		// Each entry takes at least 16 bytes, which bounds a hostile count.
		if int(count) > reply.Remaining()/16 {
			return fmt.Errorf("record count %d exceeds reply size: %w", count, parcel.ErrTruncated)
		}
		entries = make([]record.Entry, 0, count)
		for i := int32(0); i < count; i++ {
			offset, err := reply.ReadInt64()
			if err != nil {
				return err
			}
			key, err := reply.ReadBytes()
			if err != nil {
				return err
			}
			value, err := reply.ReadBytes()
			if err != nil {
				return err
			}
			entry, err := topic.DecodeEntry(offset, key, value)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
