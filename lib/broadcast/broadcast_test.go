// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package broadcast

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func collect(t *testing.T, hub *Hub, buffer int) (<-chan device.StatusEvent, func()) {
	t.Helper()
	events := make(chan device.StatusEvent, buffer)
	unsubscribe, err := hub.Subscribe(func(event device.StatusEvent) {
		events <- event
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return events, unsubscribe
}

func TestDeliveryOrderMatchesPublishOrder(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	first, _ := collect(t, hub, 1000)
	second, _ := collect(t, hub, 1000)

	sequence := []device.Status{device.Disconnected, device.Ready, device.Connecting, device.Connected, device.Disconnecting}
	for round := 0; round < 100; round++ {
		for _, status := range sequence {
			hub.Publish(device.StatusEvent{Status: status})
		}
	}

	for _, events := range []<-chan device.StatusEvent{first, second} {
		for round := 0; round < 100; round++ {
			for _, want := range sequence {
				got := testutil.RequireReceive(t, events, 5*time.Second, "waiting for event")
				if got.Status != want {
					t.Fatalf("round %d: got %s, want %s", round, got.Status, want)
				}
			}
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	release := make(chan struct{})
	received := make(chan device.StatusEvent, 10)
	_, err := hub.Subscribe(func(event device.StatusEvent) {
		<-release
		received <- event
	})
	if err != nil {
		t.Fatal(err)
	}

	published := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(device.StatusEvent{Status: device.Connected, Name: "n"})
		}
		close(published)
	}()
	testutil.RequireClosed(t, published, 5*time.Second, "publisher blocked on slow subscriber")

	close(release)
	for i := 0; i < 10; i++ {
		testutil.RequireReceive(t, received, 5*time.Second, "event %d", i)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	events, unsubscribe := collect(t, hub, 10)
	hub.Publish(device.StatusEvent{Status: device.Ready})
	testutil.RequireReceive(t, events, 5*time.Second, "first event")

	unsubscribe()
	unsubscribe()
	if hub.Len() != 0 {
		t.Errorf("Len after unsubscribe = %d", hub.Len())
	}

	// A second subscriber observes the next event; by the time it has,
	// the first would have too if it were still subscribed.
	witness, _ := collect(t, hub, 10)
	hub.Publish(device.StatusEvent{Status: device.Connected})
	testutil.RequireReceive(t, witness, 5*time.Second, "witness event")

	select {
	case event := <-events:
		t.Errorf("unsubscribed handler received %+v", event)
	default:
	}
}

func TestUnsubscribeFromHandler(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	var unsubscribe func()
	calls := make(chan struct{}, 10)
	unsubscribe, err := hub.Subscribe(func(device.StatusEvent) {
		calls <- struct{}{}
		unsubscribe()
	})
	if err != nil {
		t.Fatal(err)
	}

	hub.Publish(device.StatusEvent{Status: device.Ready})
	hub.Publish(device.StatusEvent{Status: device.Connected})
	testutil.RequireReceive(t, calls, 5*time.Second, "first call")

	witness, _ := collect(t, hub, 10)
	hub.Publish(device.StatusEvent{Status: device.Disconnected})
	testutil.RequireReceive(t, witness, 5*time.Second, "witness event")

	if len(calls) != 0 {
		t.Errorf("handler ran %d more times after unsubscribing itself", len(calls))
	}
}

func TestClosedHubRejectsSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Close()

	if _, err := hub.Subscribe(func(device.StatusEvent) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close: err = %v, want ErrClosed", err)
	}
	hub.Publish(device.StatusEvent{Status: device.Ready})
}
