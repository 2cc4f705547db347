// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package broadcast delivers device status changes to subscribers
// without polling.
//
// [Channel] is the subscriber-side contract. An in-process producer
// implements it with a [Hub]; a producer in another process implements
// it through the transaction client's status stream. A connector
// subscribes through Channel and does not care which one it got.
//
// Delivery guarantees, for both implementations: every subscriber sees
// every event published while it is subscribed, in publish order, on a
// single goroutine per subscription. Publishing never blocks on a slow
// subscriber.
package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/radarcns/sensorlink/lib/schema/device"
)

// ErrClosed is returned by Subscribe on a closed Hub.
var ErrClosed = errors.New("broadcast: hub closed")

// Channel is a source of status events.
type Channel interface {
	// Subscribe registers handler. Events are delivered to handler
	// sequentially on a goroutine owned by the subscription. Calling
	// unsubscribe stops delivery: handler is not invoked again once
	// unsubscribe returns, except for an invocation already running.
	// unsubscribe is idempotent and may be called from inside handler.
	Subscribe(handler func(device.StatusEvent)) (unsubscribe func(), err error)
}

// Hub fans published events out to its subscribers.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*subscriber
	closed      bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[string]*subscriber),
	}
}

// subscriber owns an unbounded FIFO and the goroutine draining it.
type subscriber struct {
	id      string
	handler func(device.StatusEvent)

	mu    sync.Mutex
	queue []device.StatusEvent

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) enqueue(event device.StatusEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, event := range pending {
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(event)
		}
	}
}

// Subscribe implements Channel.
func (h *Hub) Subscribe(handler func(device.StatusEvent)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	sub := &subscriber{
		id:      uuid.NewString(),
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	h.subscribers[sub.id] = sub
	go sub.run()

	h.logger.Debug("status subscriber added", "subscription", sub.id)

	return func() {
		h.mu.Lock()
		delete(h.subscribers, sub.id)
		h.mu.Unlock()
		sub.stop()
	}, nil
}

// Publish queues event for every current subscriber. Concurrent
// Publish calls are serialized, so all subscribers observe the same
// order.
func (h *Hub) Publish(event device.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subscribers {
		sub.enqueue(event)
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close stops every subscription. Later Subscribe calls fail with
// ErrClosed; later Publish calls are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subscribers {
		sub.stop()
		delete(h.subscribers, id)
	}
}
