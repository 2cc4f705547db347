// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Sensorlink-producer serves one simulated device on a transaction
// socket. A connector in process mode spawns it with --socket and
// passes its parameters in SENSORLINK_* environment variables; it can
// also be started by hand and reached in socket mode.
//
// The simulator stands in for sensor hardware: after StartRecording
// the device scans, connects on the next steps, and then appends one
// sample per topic each interval.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/process"
	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
	"github.com/radarcns/sensorlink/lib/transact"
	"github.com/radarcns/sensorlink/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	socketPath    string
	deviceKind    string
	deviceName    string
	deviceID      string
	prefix        string
	interval      time.Duration
	capacity      int
	metricsListen string
	verbose       bool
	showVersion   bool
}

func parseFlags(args []string) (options, error) {
	var o options
	flagSet := pflag.NewFlagSet("sensorlink-producer", pflag.ContinueOnError)
	flagSet.StringVar(&o.socketPath, "socket", "", "transaction socket path (required)")
	flagSet.StringVar(&o.deviceKind, "device", "wearable", "device kind: wearable or phone")
	flagSet.StringVar(&o.deviceName, "name", "", "device display name (default: the device kind)")
	flagSet.StringVar(&o.deviceID, "device-id", "", "device ID in record keys (default: the host name)")
	flagSet.StringVar(&o.prefix, "topic-prefix", "", "topic name prefix (default depends on --device)")
	flagSet.DurationVar(&o.interval, "interval", producer.DefaultSampleInterval, "simulator step interval")
	flagSet.IntVar(&o.capacity, "capacity", producer.DefaultCapacity, "records kept per topic")
	flagSet.StringVar(&o.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&o.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return o, err
	}
	if o.showVersion {
		return o, nil
	}
	if flagSet.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if o.socketPath == "" {
		return o, errors.New("--socket is required")
	}
	if o.interval <= 0 {
		return o, errors.New("--interval must be positive")
	}
	return o, nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Printf("sensorlink-producer %s\n", version.Full())
		return nil
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := process.NewLogger(level).With("component", "producer")

	kind, err := device.ParseKind(o.deviceKind)
	if err != nil {
		return fmt.Errorf("--device: %w", err)
	}
	params := producer.ParamsFromEnv()
	name := o.deviceName
	if name == "" {
		name = kind.String()
	}
	deviceID := o.deviceID
	if deviceID == "" {
		if deviceID, err = os.Hostname(); err != nil {
			return fmt.Errorf("resolving device ID: %w", err)
		}
	}

	registry := record.NewRegistry()
	d := producer.NewDevice(producer.DeviceOptions{
		Kind:     kind,
		Name:     name,
		Registry: registry,
		Capacity: o.capacity,
		Logger:   logger,
	})
	defer d.Close()
	d.SetParams(params)
	if params.UploadURL == "" {
		d.SetServerStatus(device.ServerDisabled)
	}

	simulator, err := producer.NewSimulator(d, producer.SimulatorOptions{
		Prefix:   o.prefix,
		Key:      measurement.Key{GroupID: params.GroupID, DeviceID: deviceID},
		Interval: o.interval,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(o.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	server := transact.NewServer(o.socketPath, d, logger)
	producer.Register(server, d, registry)

	ctx, stop := process.SignalContext()
	defer stop()

	if o.metricsListen != "" {
		metricsRegistry := metrics.NewRegistry()
		m, err := metrics.New(metricsRegistry)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		server.SetMetrics(m)
		go func() {
			if err := metrics.Serve(ctx, o.metricsListen, metricsRegistry, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	go func() {
		if err := simulator.Run(ctx); err != nil {
			logger.Error("simulator stopped", "error", err)
		}
	}()

	logger.Info("producer starting",
		"version", version.Info(),
		"socket", o.socketPath,
		"device_kind", kind,
		"device_name", name,
		"params", params,
	)
	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("producer stopped")
	return nil
}
