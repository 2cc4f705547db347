// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/radarcns/sensorlink/lib/clock"
	"github.com/radarcns/sensorlink/lib/process"
	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/schema/measurement"
	"github.com/radarcns/sensorlink/lib/testutil"
	"github.com/radarcns/sensorlink/lib/transact"
)

// envTestProducer makes the test binary act as a producer process.
// "1" serves until SIGTERM; "ignore-term" ignores SIGTERM and serves
// until killed.
const envTestProducer = "SENSORLINK_CONNECTOR_TEST_PRODUCER"

func TestMain(m *testing.M) {
	switch os.Getenv(envTestProducer) {
	case "1":
		ctx, cancel := process.SignalContext()
		defer cancel()
		if err := runTestProducer(ctx, os.Args[1:]); err != nil {
			process.Fatal(err)
		}
		os.Exit(0)
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
		if err := runTestProducer(context.Background(), os.Args[1:]); err != nil {
			process.Fatal(err)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runTestProducer serves a wearable device named after the group ID
// it received through the environment, until ctx ends.
func runTestProducer(ctx context.Context, args []string) error {
	var socketPath string
	for i, arg := range args {
		if arg == "--socket" && i+1 < len(args) {
			socketPath = args[i+1]
		}
	}
	if socketPath == "" {
		return errors.New("--socket is required")
	}

	registry, err := measurement.Registry(device.Wearable, "test")
	if err != nil {
		return err
	}
	d := producer.NewDevice(producer.DeviceOptions{
		Kind:     device.Wearable,
		Name:     producer.ParamsFromEnv().GroupID,
		Registry: registry,
		Logger:   testLogger(),
	})
	defer d.Close()

	server := transact.NewServer(socketPath, d, testLogger())
	producer.Register(server, d, registry)
	return server.Serve(ctx)
}

func TestProcessBinderSpawnsProducer(t *testing.T) {
	t.Setenv(envTestProducer, "1")
	socketPath := testutil.SocketPath(t, "spawned.sock")

	binder := NewProcessBinder(ProcessBinderOptions{
		SocketPath:     socketPath,
		Binary:         os.Args[0],
		StartupTimeout: 10 * time.Second,
		Client:         transact.ClientOptions{CallTimeout: eventTimeout, Logger: testLogger()},
		Logger:         testLogger(),
	})
	t.Cleanup(func() {
		if err := binder.Stop(5 * time.Second); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})

	rec := newRecorder()
	c := New(binder, rec, Options{Logger: testLogger()})
	t.Cleanup(c.Unbind)

	if err := c.Bind(context.Background(), producer.Params{GroupID: "spawned-group"}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	rec.expect(t, connected)
	if !c.IsRemote() {
		t.Error("spawned producer not reported as remote")
	}

	if err := c.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	rec.expectStatus(t, device.Ready)
	if c.DeviceName() != "spawned-group" {
		t.Errorf("DeviceName = %q, want the group ID passed in the environment", c.DeviceName())
	}

	// A second bind reaches the running producer instead of spawning.
	handle, err := binder.Bind(context.Background(), producer.Params{GroupID: "other"})
	if err != nil {
		t.Fatalf("second Bind: %v", err)
	}
	client, ok := handle.(*transact.Client)
	if !ok {
		t.Fatalf("handle = %T, want *transact.Client", handle)
	}
	snapshot, err := producer.NewRemote(client).DeviceStatus(context.Background())
	if err != nil {
		t.Fatalf("DeviceStatus: %v", err)
	}
	if snapshot.Status != device.Ready {
		t.Errorf("second bind reached a fresh producer: status %v", snapshot.Status)
	}
}

func TestProcessBinderStopKillsAfterTimeout(t *testing.T) {
	t.Setenv(envTestProducer, "ignore-term")
	socketPath := testutil.SocketPath(t, "stubborn.sock")

	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	binder := NewProcessBinder(ProcessBinderOptions{
		SocketPath: socketPath,
		Binary:     os.Args[0],
		Clock:      fakeClock,
		Logger:     testLogger(),
	})
	if _, err := binder.spawn(producer.Params{}); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	// The producer ignores SIGTERM once it answers.
	client := transact.NewClient(socketPath, transact.ClientOptions{DialTimeout: time.Second, Logger: testLogger()})
	deadline := time.Now().Add(eventTimeout)
	for client.Ping(context.Background()) != nil {
		if time.Now().After(deadline) {
			t.Fatal("spawned producer never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- binder.Stop(time.Second) }()

	fakeClock.WaitForTimers(1)
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned %v before the kill timeout", err)
	case <-time.After(100 * time.Millisecond):
	}

	fakeClock.Advance(time.Second)
	if err := testutil.RequireReceive(t, stopped, eventTimeout, "Stop did not kill the producer"); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestProcessBinderMissingBinary(t *testing.T) {
	binder := NewProcessBinder(ProcessBinderOptions{
		SocketPath: testutil.SocketPath(t, "missing.sock"),
		Binary:     "/nonexistent/sensorlink-producer",
		Logger:     testLogger(),
	})
	_, err := binder.Bind(context.Background(), producer.Params{})
	if err == nil || !strings.Contains(err.Error(), "starting producer") {
		t.Fatalf("Bind = %v, want a start error", err)
	}
	if err := binder.Stop(time.Second); err != nil {
		t.Errorf("Stop with nothing spawned: %v", err)
	}
}

func TestProcessBinderProducerExits(t *testing.T) {
	binary, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	binder := NewProcessBinder(ProcessBinderOptions{
		SocketPath:     testutil.SocketPath(t, "exits.sock"),
		Binary:         binary,
		StartupTimeout: time.Minute,
		Logger:         testLogger(),
	})
	_, err = binder.Bind(context.Background(), producer.Params{})
	if err == nil || !strings.Contains(err.Error(), "exited during startup") {
		t.Fatalf("Bind = %v, want an exit error", err)
	}
}

func TestSocketBinderNoProducer(t *testing.T) {
	binder := NewSocketBinder(testutil.SocketPath(t, "absent.sock"), transact.ClientOptions{
		DialTimeout: time.Second,
		Logger:      testLogger(),
	})
	_, err := binder.Bind(context.Background(), producer.Params{})
	var transportError *transact.TransportError
	if !errors.As(err, &transportError) {
		t.Fatalf("Bind = %v, want *transact.TransportError", err)
	}
}

func TestLocalBinderReusesDevice(t *testing.T) {
	created := 0
	binder := NewLocalBinder(func(params producer.Params) (*producer.Device, error) {
		created++
		if params.GroupID == "" {
			return nil, fmt.Errorf("group id required")
		}
		return newWearableDevice(t, "local"), nil
	})

	if _, err := binder.Bind(context.Background(), producer.Params{}); err == nil {
		t.Fatal("factory error not returned")
	}
	if binder.Device() != nil {
		t.Fatal("device kept after a failed factory call")
	}

	first, err := binder.Bind(context.Background(), producer.Params{GroupID: "a"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	second, err := binder.Bind(context.Background(), producer.Params{GroupID: "b"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if first != second || created != 2 {
		t.Errorf("device not reused: same=%v created=%d", first == second, created)
	}
	if got := binder.Device().Params().GroupID; got != "b" {
		t.Errorf("params GroupID = %q, want b", got)
	}
}
