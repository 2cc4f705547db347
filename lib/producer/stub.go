// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/transact"
)

// Register installs handlers on server that serve p's operations.
// registry resolves the topic names in GetRecords requests.
func Register(server *transact.Server, p Producer, registry *record.Registry) {
	server.Handle(transact.GetDeviceStatus, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		snapshot, err := p.DeviceStatus(ctx)
		if err != nil {
			return err
		}
		snapshot.WriteParcel(reply)
		return nil
	})

	server.Handle(transact.GetRecords, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		return serveRecords(ctx, p, registry, request, reply)
	})

	server.Handle(transact.StartRecording, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		snapshot, err := p.StartRecording(ctx)
		if err != nil {
			return err
		}
		snapshot.WriteParcel(reply)
		return nil
	})

	server.Handle(transact.StopRecording, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		return p.StopRecording(ctx)
	})

	server.Handle(transact.GetServerStatus, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		status, err := p.ServerStatus(ctx)
		if err != nil {
			return err
		}
		reply.WriteInt32(int32(status))
		return nil
	})
}

// serveRecords answers GetRecords.
//
// Request: string topic, int32 limit.
// Reply:   int32 count, then count × {int64 offset, bytes key, bytes value}.
func serveRecords(ctx context.Context, p Producer, registry *record.Registry, request *parcel.Reader, reply *parcel.Writer) error {
	name, present, err := request.ReadString()
	if err != nil {
		return err
	}
	if !present {
		return errors.New("topic name is required")
	}
	limit, err := request.ReadInt32()
	if err != nil {
		return err
	}
	topic, ok := registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownTopic, name)
	}

	entries, err := p.Records(ctx, topic, int(limit))
	if err != nil {
		return err
	}
	if len(entries) > math.MaxInt32 {
		return fmt.Errorf("too many records: %d", len(entries))
	}

	reply.WriteInt32(int32(len(entries)))
	for _, entry := range entries {
		key, value, err := topic.EncodeEntry(entry)
		if err != nil {
			return err
		}
		reply.WriteInt64(entry.Offset)
		reply.WriteBytes(key)
		reply.WriteBytes(value)
	}
	return nil
}
