// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/radarcns/sensorlink/lib/broadcast"
	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/testutil"
)

const echo Code = 100

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startServer runs server until the returned stop function is called
// (or the test ends) and waits for its socket to appear.
func startServer(t *testing.T, server *Server) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	waitForSocket(t, server.socketPath)

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}
	t.Cleanup(stop)
	return stop
}

func newTestServer(t *testing.T, status broadcast.Channel) (*Server, *Client) {
	t.Helper()
	socketPath := testutil.SocketPath(t, "producer.sock")
	server := NewServer(socketPath, status, testLogger())
	client := NewClient(socketPath, ClientOptions{CallTimeout: 5 * time.Second, Logger: testLogger()})
	return server, client
}

// echoHandler replies with the int32 and string it was sent.
func echoHandler(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
	number, err := request.ReadInt32()
	if err != nil {
		return err
	}
	text, _, err := request.ReadString()
	if err != nil {
		return err
	}
	reply.WriteInt32(number * 2)
	reply.WriteString(text)
	return nil
}

func TestCallRoundTrip(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, echoHandler)
	startServer(t, server)

	request := parcel.NewWriter(16)
	request.WriteInt32(21)
	request.WriteString("hello")

	var number int32
	var text string
	err := client.Call(context.Background(), echo, request.Bytes(), func(reply *parcel.Reader) error {
		var err error
		if number, err = reply.ReadInt32(); err != nil {
			return err
		}
		text, _, err = reply.ReadString()
		return err
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if number != 42 || text != "hello" {
		t.Errorf("reply = (%d, %q), want (42, %q)", number, text, "hello")
	}
}

func TestPing(t *testing.T) {
	server, client := newTestServer(t, nil)
	startServer(t, server)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCallNoServerIsTransportError(t *testing.T) {
	_, client := newTestServer(t, nil)

	err := client.Ping(context.Background())
	var transportError *TransportError
	if !errors.As(err, &transportError) {
		t.Fatalf("Ping without server: got %v, want *TransportError", err)
	}
	if transportError.Op != "dial" {
		t.Errorf("Op = %q, want dial", transportError.Op)
	}
}

func TestHandlerFailureIsRemoteError(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		return errors.New("sensor offline")
	})
	startServer(t, server)

	err := client.Call(context.Background(), echo, nil, nil)
	var remoteError *RemoteError
	if !errors.As(err, &remoteError) {
		t.Fatalf("got %v, want *RemoteError", err)
	}
	if remoteError.Message != "sensor offline" || remoteError.Code != echo {
		t.Errorf("RemoteError = %+v", remoteError)
	}
}

func TestUnknownCodeIsRemoteError(t *testing.T) {
	server, client := newTestServer(t, nil)
	startServer(t, server)

	err := client.Call(context.Background(), GetDeviceStatus, nil, nil)
	var remoteError *RemoteError
	if !errors.As(err, &remoteError) {
		t.Fatalf("got %v, want *RemoteError", err)
	}
}

func TestUnreadRequestBytesRejected(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		return nil
	})
	startServer(t, server)

	request := parcel.NewWriter(4)
	request.WriteInt32(7)
	err := client.Call(context.Background(), echo, request.Bytes(), nil)
	var remoteError *RemoteError
	if !errors.As(err, &remoteError) {
		t.Fatalf("got %v, want *RemoteError for unconsumed request", err)
	}
}

func TestServerCountsHandledTransactions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	server, client := newTestServer(t, nil)
	server.SetMetrics(m)
	server.Handle(echo, echoHandler)
	startServer(t, server)

	request := parcel.NewWriter(16)
	request.WriteInt32(1)
	request.WriteString("a")
	consume := func(reply *parcel.Reader) error {
		if _, err := reply.ReadInt32(); err != nil {
			return err
		}
		_, _, err := reply.ReadString()
		return err
	}
	if err := client.Call(context.Background(), echo, request.Bytes(), consume); err != nil {
		t.Fatalf("Call: %v", err)
	}
	request.WriteInt32(2)
	if err := client.Call(context.Background(), echo, request.Bytes(), nil); err == nil {
		t.Fatal("Call with trailing bytes succeeded")
	}
	if err := client.Call(context.Background(), GetDeviceStatus, nil, nil); err == nil {
		t.Fatal("Call to an unhandled code succeeded")
	}

	expected := `
# HELP sensorlink_transact_handled_total Transactions served by a producer, by code and result.
# TYPE sensorlink_transact_handled_total counter
sensorlink_transact_handled_total{code="Code(0x64)",result="ok"} 1
sensorlink_transact_handled_total{code="Code(0x64)",result="remote_error"} 1
sensorlink_transact_handled_total{code="GetDeviceStatus",result="protocol_error"} 1
`
	if err := promtestutil.GatherAndCompare(registry, strings.NewReader(expected), "sensorlink_transact_handled_total"); err != nil {
		t.Error(err)
	}
	if got, err := promtestutil.GatherAndCount(registry, "sensorlink_transact_calls_total"); err != nil || got != 0 {
		t.Errorf("server recorded %d client call series (%v)", got, err)
	}
}

func TestUnreadReplyBytesIsProtocolError(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		reply.WriteInt32(1)
		reply.WriteInt32(2)
		return nil
	})
	startServer(t, server)

	err := client.Call(context.Background(), echo, nil, func(reply *parcel.Reader) error {
		_, err := reply.ReadInt32()
		return err
	})
	var protocolError *ProtocolError
	if !errors.As(err, &protocolError) {
		t.Fatalf("got %v, want *ProtocolError", err)
	}
	var unread *parcel.UnreadError
	if !errors.As(err, &unread) || unread.Remaining != 4 {
		t.Errorf("got %v, want UnreadError with 4 bytes remaining", err)
	}
}

func TestShortReplyIsProtocolError(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		reply.WriteInt32(1)
		return nil
	})
	startServer(t, server)

	err := client.Call(context.Background(), echo, nil, func(reply *parcel.Reader) error {
		_, err := reply.ReadInt64()
		return err
	})
	var protocolError *ProtocolError
	if !errors.As(err, &protocolError) {
		t.Fatalf("got %v, want *ProtocolError", err)
	}
	if !errors.Is(err, parcel.ErrTruncated) {
		t.Errorf("got %v, want wrapped ErrTruncated", err)
	}
}

func TestFormatErrorPassesThrough(t *testing.T) {
	server, client := newTestServer(t, nil)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		return nil
	})
	startServer(t, server)

	want := &record.FormatError{Topic: "t", Part: "value", Err: record.ErrMissingField}
	err := client.Call(context.Background(), echo, nil, func(reply *parcel.Reader) error {
		return want
	})
	if err != want {
		t.Fatalf("got %v, want the FormatError unchanged", err)
	}
}

func TestSendOneWay(t *testing.T) {
	server, client := newTestServer(t, nil)
	received := make(chan int32, 1)
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		value, err := request.ReadInt32()
		if err != nil {
			return err
		}
		received <- value
		return nil
	})
	startServer(t, server)

	request := parcel.NewWriter(4)
	request.WriteInt32(9)
	if err := client.Send(context.Background(), echo, request.Bytes()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := testutil.RequireReceive(t, received, 5*time.Second, "one-way handler not run"); got != 9 {
		t.Errorf("handler received %d, want 9", got)
	}
}

func TestCallTimeout(t *testing.T) {
	server, _ := newTestServer(t, nil)
	release := make(chan struct{})
	server.Handle(echo, func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error {
		<-release
		return nil
	})
	startServer(t, server)
	defer close(release)

	client := NewClient(server.socketPath, ClientOptions{CallTimeout: 50 * time.Millisecond, Logger: testLogger()})
	err := client.Call(context.Background(), echo, nil, nil)
	var transportError *TransportError
	if !errors.As(err, &transportError) {
		t.Fatalf("got %v, want *TransportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want wrapped DeadlineExceeded", err)
	}
}

func TestLinkToDeathFiresOnShutdown(t *testing.T) {
	server, client := newTestServer(t, nil)
	stop := startServer(t, server)

	died := make(chan struct{})
	unlink, err := client.LinkToDeath(context.Background(), func() { close(died) })
	if err != nil {
		t.Fatalf("LinkToDeath: %v", err)
	}
	defer unlink()

	stop()
	testutil.RequireClosed(t, died, 5*time.Second, "death recipient not called")
}

func TestUnlinkSuppressesRecipient(t *testing.T) {
	server, client := newTestServer(t, nil)
	stop := startServer(t, server)

	died := make(chan struct{}, 1)
	unlink, err := client.LinkToDeath(context.Background(), func() { died <- struct{}{} })
	if err != nil {
		t.Fatalf("LinkToDeath: %v", err)
	}
	unlink()
	unlink()
	stop()

	select {
	case <-died:
		t.Fatal("recipient called after unlink")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeStatusStream(t *testing.T) {
	hub := broadcast.NewHub(testLogger())
	defer hub.Close()
	server, client := newTestServer(t, hub)
	stop := startServer(t, server)

	events := make(chan device.StatusEvent, 8)
	unsubscribe, err := client.Subscribe(func(event device.StatusEvent) { events <- event })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if hub.Len() != 1 {
		t.Fatalf("hub has %d subscribers, want 1", hub.Len())
	}

	sequence := []device.Status{device.Disconnected, device.Ready, device.Connected}
	for _, status := range sequence {
		hub.Publish(device.StatusEvent{Status: status, Name: "E4-" + status.String()})
	}
	for i, want := range sequence {
		event := testutil.RequireReceive(t, events, 5*time.Second, "event %d", i)
		if event.Status != want {
			t.Errorf("event %d: status %v, want %v", i, event.Status, want)
		}
		if event.Name != fmt.Sprintf("E4-%s", want) {
			t.Errorf("event %d: name %q", i, event.Name)
		}
	}

	stop()
	for hub.Len() != 0 {
		if t.Context().Err() != nil {
			t.Fatal("server did not unsubscribe on shutdown")
		}
		runtime.Gosched()
	}
}

func TestSubscribeWithoutStatusSource(t *testing.T) {
	server, client := newTestServer(t, nil)
	startServer(t, server)

	_, err := client.Subscribe(func(device.StatusEvent) {})
	var remoteError *RemoteError
	if !errors.As(err, &remoteError) {
		t.Fatalf("got %v, want *RemoteError", err)
	}
}

func TestHandlePanics(t *testing.T) {
	server := NewServer("/tmp/unused.sock", nil, testLogger())
	server.Handle(echo, echoHandler)

	for name, code := range map[string]Code{"duplicate": echo, "system": Ping} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Handle(%s) did not panic", code)
				}
			}()
			server.Handle(code, echoHandler)
		})
	}
}

func TestCodeString(t *testing.T) {
	if !Ping.IsSystem() || !LinkToDeath.IsSystem() || !SubscribeStatus.IsSystem() {
		t.Error("system codes must be at or above FirstSystemCode")
	}
	if GetServerStatus.IsSystem() {
		t.Error("GetServerStatus reported as system code")
	}
	if Ping != 0x5f504e47 {
		t.Errorf("Ping = %#x, want 0x5f504e47", uint32(Ping))
	}
	if got := Code(77).String(); got != "Code(0x4d)" {
		t.Errorf("Code(77).String() = %q", got)
	}
	if got := GetRecords.String(); got != "GetRecords" {
		t.Errorf("GetRecords.String() = %q", got)
	}
}
