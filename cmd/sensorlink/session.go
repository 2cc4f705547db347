// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radarcns/sensorlink/lib/config"
	"github.com/radarcns/sensorlink/lib/connector"
	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
	"github.com/radarcns/sensorlink/lib/transact"
)

// statusChange is a DeviceStatusUpdated callback as seen by watch.
type statusChange struct {
	status device.Status
	name   string
}

// session is one connector bound for the lifetime of a command.
type session struct {
	config    *config.Config
	kind      device.Kind
	logger    *slog.Logger
	registry  *prometheus.Registry
	connector *connector.Connector

	changes  chan statusChange
	failures chan error

	// Local mode only: the in-process simulator.
	stopSimulator context.CancelFunc
	local         *connector.LocalBinder
}

func newSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	kind, err := cfg.DeviceKind()
	if err != nil {
		return nil, err
	}
	s := &session{
		config:   cfg,
		kind:     kind,
		logger:   logger,
		registry: metrics.NewRegistry(),
		changes:  make(chan statusChange, 64),
		failures: make(chan error, 1),
	}
	m, err := metrics.New(s.registry)
	if err != nil {
		return nil, err
	}

	binder, err := s.newBinder(m)
	if err != nil {
		return nil, err
	}
	controller := connector.ControllerFuncs{
		Connected: func(c *connector.Connector) {
			logger.Info("producer connected", "remote", c.IsRemote())
		},
		Disconnected: func(*connector.Connector) {
			logger.Warn("producer disconnected")
		},
		StatusUpdated: func(c *connector.Connector, status device.Status) {
			select {
			case s.changes <- statusChange{status: status, name: c.DeviceName()}:
			default:
				logger.Warn("dropping status change, watcher is behind", "status", status)
			}
		},
		Failed: func(_ *connector.Connector, err error) {
			select {
			case s.failures <- err:
			default:
			}
		},
	}
	s.connector = connector.New(binder, controller, connector.Options{
		Logger:  logger.With("component", "connector"),
		Metrics: m,
		Rebind: connector.RebindPolicy{
			InitialBackoff: cfg.Rebind.InitialBackoff,
			MaxBackoff:     cfg.Rebind.MaxBackoff,
			MaxAttempts:    cfg.Rebind.MaxAttempts,
		},
	})
	return s, nil
}

func (s *session) newBinder(m *metrics.Metrics) (connector.Binder, error) {
	clientOptions := transact.ClientOptions{
		CallTimeout: s.config.Transaction.CallTimeout,
		DialTimeout: s.config.Transaction.DialTimeout,
		Logger:      s.logger.With("component", "transact"),
		Metrics:     m,
	}
	producerConfig := s.config.Producer

	switch producerConfig.Mode {
	case config.ModeLocal:
		s.local = connector.NewLocalBinder(s.newLocalDevice)
		return s.local, nil
	case config.ModeSocket:
		return connector.NewSocketBinder(producerConfig.SocketPath, clientOptions), nil
	case config.ModeProcess:
		args := []string{"--device", s.kind.String()}
		if producerConfig.DeviceName != "" {
			args = append(args, "--name", producerConfig.DeviceName)
		}
		return connector.NewProcessBinder(connector.ProcessBinderOptions{
			SocketPath:     producerConfig.SocketPath,
			Binary:         producerConfig.Binary,
			Args:           args,
			StartupTimeout: producerConfig.StartupTimeout,
			Client:         clientOptions,
			Logger:         s.logger.With("component", "process"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown producer mode %q", producerConfig.Mode)
	}
}

// newLocalDevice creates the in-process producer and starts its
// simulator.
func (s *session) newLocalDevice(params producer.Params) (*producer.Device, error) {
	name := s.config.Producer.DeviceName
	if name == "" {
		name = s.kind.String()
	}
	d := producer.NewDevice(producer.DeviceOptions{
		Kind:     s.kind,
		Name:     name,
		Registry: record.NewRegistry(),
		Logger:   s.logger.With("component", "producer"),
	})
	simulator, err := producer.NewSimulator(d, producer.SimulatorOptions{
		Key: measurement.Key{GroupID: params.GroupID, DeviceID: "local"},
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSimulator = cancel
	go func() {
		if err := simulator.Run(ctx); err != nil {
			s.logger.Error("simulator stopped", "error", err)
		}
	}()
	return d, nil
}

func (s *session) bind(ctx context.Context) error {
	return s.connector.Bind(ctx, s.config.Params)
}

func (s *session) close() {
	s.connector.Unbind()
	if s.stopSimulator != nil {
		s.stopSimulator()
	}
	if s.local != nil && s.local.Device() != nil {
		s.local.Device().Close()
	}
}
