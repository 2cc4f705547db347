// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
)

func noArgs(name string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments, got %q", name, args[0])
	}
	return nil
}

func runStatus(ctx context.Context, s *session, args []string, out io.Writer) error {
	if err := noArgs("status", args); err != nil {
		return err
	}
	snapshot, err := s.connector.DeviceStatus(ctx)
	if err != nil {
		return err
	}
	serverStatus, err := s.connector.ServerStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderStatus(statusView{
		name:         s.connector.DeviceName(),
		remote:       s.connector.IsRemote(),
		snapshot:     snapshot,
		serverStatus: serverStatus,
	}))
	return nil
}

func runServerStatus(ctx context.Context, s *session, args []string, out io.Writer) error {
	if err := noArgs("server-status", args); err != nil {
		return err
	}
	status, err := s.connector.ServerStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, status)
	return nil
}

func runStart(ctx context.Context, s *session, args []string, out io.Writer) error {
	if err := noArgs("start", args); err != nil {
		return err
	}
	if err := s.connector.StartRecording(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "recording: %s\n", renderDeviceStatus(s.connector.Status()))
	return nil
}

func runStop(ctx context.Context, s *session, args []string, out io.Writer) error {
	if err := noArgs("stop", args); err != nil {
		return err
	}
	if err := s.connector.StopRecording(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "recording stopped")
	return nil
}

func runRecords(ctx context.Context, s *session, args []string, out io.Writer) error {
	var limit int
	var prefix string
	flagSet := pflag.NewFlagSet("records", pflag.ContinueOnError)
	flagSet.IntVarP(&limit, "limit", "n", 10, "maximum number of records")
	flagSet.StringVar(&prefix, "topic-prefix", "", "topic name prefix (default depends on the device kind)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("usage: sensorlink records [--limit N] TOPIC")
	}
	if prefix == "" {
		prefix = measurement.DefaultPrefix(s.kind)
	}

	registry, err := measurement.Registry(s.kind, prefix)
	if err != nil {
		return err
	}
	name := flagSet.Arg(0)
	codec, ok := registry.Lookup(name)
	if !ok {
		codec, ok = registry.Lookup(prefix + "_" + name)
	}
	if !ok {
		return fmt.Errorf("unknown topic %q; %s topics: %s", name, s.kind, strings.Join(registry.Names(), ", "))
	}

	entries, err := s.connector.Entries(ctx, codec, limit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderRecords(codec, entries))
	return nil
}

func runWatch(ctx context.Context, s *session, args []string, out io.Writer) error {
	if err := noArgs("watch", args); err != nil {
		return err
	}
	if listen := s.config.Metrics.Listen; listen != "" {
		go func() {
			if err := metrics.Serve(ctx, listen, s.registry, s.logger); err != nil {
				s.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	fmt.Fprintln(out, renderChange(time.Now(), statusChange{
		status: s.connector.Status(),
		name:   s.connector.DeviceName(),
	}))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-s.failures:
			return err
		case change := <-s.changes:
			fmt.Fprintln(out, renderChange(time.Now(), change))
		}
	}
}
