// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package producer

import (
	"context"
	"log/slog"
	"os"

	"github.com/radarcns/sensorlink/lib/broadcast"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

// Producer is the operation set of a device-data producer.
type Producer interface {
	broadcast.Channel

	// DeviceStatus returns a fresh snapshot of the device.
	DeviceStatus(ctx context.Context) (device.Snapshot, error)

	// Records returns at most limit of the most recent records on
	// topic, most recent first. Entries hold topic's Go types.
	Records(ctx context.Context, topic record.Codec, limit int) ([]record.Entry, error)

	// StartRecording begins scanning for the device and returns the
	// resulting snapshot.
	StartRecording(ctx context.Context) (device.Snapshot, error)

	// StopRecording disconnects the device. The status change is
	// reported on the broadcast channel.
	StopRecording(ctx context.Context) error

	// ServerStatus reports the upload pipeline's state.
	ServerStatus(ctx context.Context) (device.ServerStatus, error)
}

// Environment variables carrying Params to a producer process.
const (
	EnvUploadURL         = "SENSORLINK_UPLOAD_URL"
	EnvSchemaRegistryURL = "SENSORLINK_SCHEMA_REGISTRY_URL"
	EnvGroupID           = "SENSORLINK_GROUP_ID"
	EnvAPIKey            = "SENSORLINK_API_KEY"
)

// Params configure a producer's upload pipeline. The connector passes
// them through without interpreting them.
type Params struct {
	UploadURL         string `yaml:"upload_url"`
	SchemaRegistryURL string `yaml:"schema_registry_url"`
	GroupID           string `yaml:"group_id"`
	APIKey            string `yaml:"api_key"`
}

// Env returns p as KEY=value pairs for a child process environment.
// Empty fields are omitted.
func (p Params) Env() []string {
	var env []string
	add := func(key, value string) {
		if value != "" {
			env = append(env, key+"="+value)
		}
	}
	add(EnvUploadURL, p.UploadURL)
	add(EnvSchemaRegistryURL, p.SchemaRegistryURL)
	add(EnvGroupID, p.GroupID)
	add(EnvAPIKey, p.APIKey)
	return env
}

// ParamsFromEnv reads Params from the process environment.
func ParamsFromEnv() Params {
	return Params{
		UploadURL:         os.Getenv(EnvUploadURL),
		SchemaRegistryURL: os.Getenv(EnvSchemaRegistryURL),
		GroupID:           os.Getenv(EnvGroupID),
		APIKey:            os.Getenv(EnvAPIKey),
	}
}

// LogValue keeps the API key out of logs.
func (p Params) LogValue() slog.Value {
	apiKey := ""
	if p.APIKey != "" {
		apiKey = "[redacted]"
	}
	return slog.GroupValue(
		slog.String("upload_url", p.UploadURL),
		slog.String("schema_registry_url", p.SchemaRegistryURL),
		slog.String("group_id", p.GroupID),
		slog.String("api_key", apiKey),
	)
}
