// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/radarcns/sensorlink/lib/clock"
	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
	"github.com/radarcns/sensorlink/lib/transact"
)

// ErrNotBound is returned by operations on a connector without a live
// binding.
var ErrNotBound = errors.New("connector: not bound")

// State is the binding state of a Connector.
type State int

const (
	Unbound State = iota
	Binding
	Bound
	Dead
	Rebinding
)

var stateNames = [...]string{
	Unbound:   "unbound",
	Binding:   "binding",
	Bound:     "bound",
	Dead:      "dead",
	Rebinding: "rebinding",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Binder produces a handle to a producer. The handle is either a
// producer.Producer, called in-process, or a *transact.Client for a
// producer in another process.
type Binder interface {
	Bind(ctx context.Context, params producer.Params) (any, error)
}

// RebindPolicy bounds automatic recovery after a producer death.
type RebindPolicy struct {
	// InitialBackoff is the delay before the second attempt; the
	// first attempt is immediate.
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling delay.
	MaxBackoff time.Duration
	// MaxAttempts caps consecutive attempts. 0 retries forever.
	MaxAttempts int
}

// DefaultRebindPolicy returns 1s initial backoff doubling to 30s, at
// most 10 attempts.
func DefaultRebindPolicy() RebindPolicy {
	return RebindPolicy{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		MaxAttempts:    10,
	}
}

// Options configure a Connector. Zero values select defaults; a zero
// Rebind selects DefaultRebindPolicy.
type Options struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Rebind  RebindPolicy
}

// cachedStatus is the last known device status and name. A new value
// replaces the whole cell.
type cachedStatus struct {
	status device.Status
	name   string
	// events counts status events applied, so a snapshot fetched
	// concurrently does not overwrite a newer event.
	events uint64
}

// lifetime spans one Bind until Unbind or a final failure. Its
// supervisor goroutine consumes deaths.
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
	deaths chan uint64
}

// Connector binds to one producer at a time and exposes its
// operations. Safe for concurrent use.
type Connector struct {
	binder     Binder
	controller Controller
	logger     *slog.Logger
	clock      clock.Clock
	metrics    *metrics.Metrics
	policy     RebindPolicy

	cacheMu sync.Mutex
	cached  atomic.Pointer[cachedStatus]

	mu         sync.Mutex
	state      State
	generation uint64
	params     producer.Params
	delegate   producer.Producer
	remote     bool
	teardown   []func()
	bindingID  string
	life       *lifetime
	// pendingDeath holds a generation that died before its binding
	// completed.
	pendingDeath uint64
}

func New(binder Binder, controller Controller, options Options) *Connector {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Rebind == (RebindPolicy{}) {
		options.Rebind = DefaultRebindPolicy()
	}
	if options.Rebind.MaxBackoff < options.Rebind.InitialBackoff {
		options.Rebind.MaxBackoff = options.Rebind.InitialBackoff
	}
	c := &Connector{
		binder:     binder,
		controller: controller,
		logger:     options.Logger,
		clock:      options.Clock,
		metrics:    options.Metrics,
		policy:     options.Rebind,
	}
	c.cached.Store(&cachedStatus{status: device.Disconnected})
	c.metrics.SetState(int(Unbound))
	return c
}

// Bind starts a binding with params. It returns once the binding is
// complete or has failed. Binding a connector that is not Unbound
// logs a warning and keeps the existing binding.
func (c *Connector) Bind(ctx context.Context, params producer.Params) error {
	c.mu.Lock()
	if c.state != Unbound {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("trying to re-bind, keeping existing binding", "state", state)
		return nil
	}
	c.generation++
	generation := c.generation
	c.params = params
	lifeCtx, cancel := context.WithCancel(context.Background())
	life := &lifetime{ctx: lifeCtx, cancel: cancel, deaths: make(chan uint64, 1)}
	c.life = life
	c.setStateLocked(Binding)
	c.mu.Unlock()

	go c.supervise(life)

	c.logger.Info("binding producer", "params", params, "generation", generation)
	handle, err := c.binder.Bind(ctx, params)
	if err != nil {
		c.metrics.RecordBinding(metrics.ResultFailed)
		err = fmt.Errorf("binding producer: %w", err)
		c.fail(generation, err)
		return err
	}
	return c.onBound(ctx, handle, generation)
}

// onBound classifies handle, subscribes to its status channel, links
// to its death when it is remote, and queries the initial status.
// Status events of this binding are held until onBound returns, so
// the controller sees ServiceConnected before any of them.
func (c *Connector) onBound(ctx context.Context, handle any, generation uint64) error {
	var delegate producer.Producer
	var remote bool
	var teardown []func()

	committed := make(chan struct{})
	defer close(committed)

	switch h := handle.(type) {
	case producer.Producer:
		delegate = h
	case *transact.Client:
		delegate = producer.NewRemote(h)
		remote = true
		unlink, err := h.LinkToDeath(ctx, func() { c.postDeath(generation) })
		if err != nil {
			return c.bindFailed(generation, nil, fmt.Errorf("linking to producer death: %w", err))
		}
		teardown = append(teardown, unlink)
	default:
		return c.bindFailed(generation, nil, fmt.Errorf("unsupported producer handle %T", handle))
	}

	unsubscribe, err := delegate.Subscribe(func(event device.StatusEvent) {
		<-committed
		c.onStatusEvent(generation, event)
	})
	if err != nil {
		return c.bindFailed(generation, teardown, fmt.Errorf("subscribing to status: %w", err))
	}
	teardown = append(teardown, unsubscribe)

	before := c.cached.Load().events
	snapshot, err := delegate.DeviceStatus(ctx)
	if err != nil {
		return c.bindFailed(generation, teardown, fmt.Errorf("querying initial device status: %w", err))
	}

	c.mu.Lock()
	if c.generation != generation || (c.state != Binding && c.state != Rebinding) {
		c.mu.Unlock()
		runAll(teardown)
		return ErrNotBound
	}
	c.delegate = delegate
	c.remote = remote
	c.teardown = teardown
	c.bindingID = uuid.NewString()
	bindingID := c.bindingID
	diedEarly := c.pendingDeath == generation
	c.setStateLocked(Bound)
	c.mu.Unlock()

	c.updateCache(func(cell *cachedStatus) {
		if cell.events == before {
			cell.status = snapshot.Status
		}
	})
	c.metrics.RecordBinding(metrics.ResultOK)
	c.logger.Info("producer bound",
		"binding_id", bindingID,
		"generation", generation,
		"remote", remote,
		"status", snapshot.Status,
	)
	c.controller.ServiceConnected(c)

	if diedEarly {
		c.postDeath(generation)
	}
	return nil
}

// bindFailed releases a partial binding and ends the lifetime.
func (c *Connector) bindFailed(generation uint64, teardown []func(), err error) error {
	runAll(teardown)
	c.metrics.RecordBinding(metrics.ResultFailed)
	c.fail(generation, err)
	return err
}

// fail moves a binding attempt of generation to Unbound and reports
// err, unless the attempt was already superseded.
func (c *Connector) fail(generation uint64, err error) {
	c.mu.Lock()
	if c.generation != generation || (c.state != Binding && c.state != Rebinding) {
		c.mu.Unlock()
		return
	}
	life := c.life
	c.life = nil
	c.setStateLocked(Unbound)
	c.mu.Unlock()

	if life != nil {
		life.cancel()
	}
	c.resetCache()
	c.logger.Error("producer binding failed", "generation", generation, "error", err)
	c.controller.ServiceFailed(c, err)
}

func (c *Connector) onStatusEvent(generation uint64, event device.StatusEvent) {
	if !c.isCurrent(generation) {
		return
	}
	c.updateCache(func(cell *cachedStatus) {
		cell.status = event.Status
		if event.Name != "" {
			cell.name = event.Name
		}
		cell.events++
	})
	c.metrics.RecordStatusEvent(event.Status.String())
	c.logger.Debug("device status updated", "status", event.Status, "generation", generation)
	c.controller.DeviceStatusUpdated(c, event.Status)
}

func (c *Connector) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation && c.state != Unbound
}

// postDeath hands a death notification to the supervisor.
func (c *Connector) postDeath(generation uint64) {
	c.mu.Lock()
	life := c.life
	c.mu.Unlock()
	if life == nil {
		return
	}
	select {
	case life.deaths <- generation:
	case <-life.ctx.Done():
	}
}

// supervise handles deaths for one bind lifetime.
func (c *Connector) supervise(life *lifetime) {
	for {
		select {
		case <-life.ctx.Done():
			return
		case generation := <-life.deaths:
			c.handleDeath(life, generation)
		}
	}
}

func (c *Connector) handleDeath(life *lifetime, generation uint64) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	if c.state == Binding || c.state == Rebinding {
		// onBound re-posts the death once the binding is committed.
		c.pendingDeath = generation
		c.mu.Unlock()
		return
	}
	if c.state != Bound {
		c.mu.Unlock()
		return
	}
	// Late events from the dead binding's stream are stale from here on.
	c.generation++
	teardown := c.releaseLocked()
	params := c.params
	c.setStateLocked(Dead)
	c.mu.Unlock()

	c.metrics.RecordDeath()
	c.logger.Warn("producer died", "generation", generation)
	runAll(teardown)
	c.resetCache()
	c.controller.ServiceDisconnected(c)
	c.controller.DeviceStatusUpdated(c, device.Disconnected)

	c.rebind(life, params)
}

// rebind retries the binder with the retained params until a binding
// completes, the policy gives up, or the lifetime ends.
func (c *Connector) rebind(life *lifetime, params producer.Params) {
	c.mu.Lock()
	if c.state != Dead || c.life != life {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(Rebinding)
	c.mu.Unlock()

	backoff := c.policy.InitialBackoff
	var lastErr error
	attempts := 0
	for c.policy.MaxAttempts == 0 || attempts < c.policy.MaxAttempts {
		if attempts > 0 {
			c.logger.Info("waiting before rebind", "backoff", backoff, "attempt", attempts+1)
			select {
			case <-life.ctx.Done():
				return
			case <-c.clock.After(backoff):
			}
			backoff = min(backoff*2, c.policy.MaxBackoff)
		}
		attempts++

		c.mu.Lock()
		if c.state != Rebinding || c.life != life {
			c.mu.Unlock()
			return
		}
		c.generation++
		generation := c.generation
		c.mu.Unlock()

		handle, err := c.binder.Bind(life.ctx, params)
		if err != nil {
			lastErr = err
			c.metrics.RecordBinding(metrics.ResultFailed)
			c.logger.Warn("rebind attempt failed", "attempt", attempts, "error", err)
			continue
		}
		// A failure from here on is reported by onBound and not retried.
		c.onBound(life.ctx, handle, generation)
		return
	}

	c.mu.Lock()
	if c.state != Rebinding || c.life != life {
		c.mu.Unlock()
		return
	}
	c.life = nil
	c.setStateLocked(Unbound)
	c.mu.Unlock()

	life.cancel()
	err := fmt.Errorf("rebind gave up after %d attempts: %w", attempts, lastErr)
	c.logger.Error("producer rebind failed", "error", err)
	c.controller.ServiceFailed(c, err)
}

// Unbind ends any binding or rebinding. It is safe on a connector that
// was never bound. In-flight operations are not cancelled.
func (c *Connector) Unbind() {
	c.mu.Lock()
	previous := c.state
	if previous == Unbound {
		c.mu.Unlock()
		return
	}
	c.generation++
	teardown := c.releaseLocked()
	life := c.life
	c.life = nil
	c.setStateLocked(Unbound)
	c.mu.Unlock()

	if life != nil {
		life.cancel()
	}
	runAll(teardown)
	c.resetCache()
	c.logger.Info("producer unbound", "previous_state", previous)
	if previous == Bound || previous == Rebinding {
		c.controller.ServiceDisconnected(c)
	}
}

// releaseLocked drops the current delegate and returns its teardown
// functions. Caller holds c.mu.
func (c *Connector) releaseLocked() []func() {
	teardown := c.teardown
	c.teardown = nil
	c.delegate = nil
	c.remote = false
	c.bindingID = ""
	return teardown
}

func (c *Connector) setStateLocked(state State) {
	c.state = state
	c.metrics.SetState(int(state))
}

func (c *Connector) updateCache(update func(*cachedStatus)) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	next := *c.cached.Load()
	update(&next)
	c.cached.Store(&next)
}

// resetCache forgets the status and name of a binding that ended.
func (c *Connector) resetCache() {
	c.updateCache(func(cell *cachedStatus) {
		cell.status = device.Disconnected
		cell.name = ""
		cell.events++
	})
}

func runAll(funcs []func()) {
	for _, f := range funcs {
		f()
	}
}

// current returns the bound delegate.
func (c *Connector) current() (producer.Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Bound || c.delegate == nil {
		return nil, ErrNotBound
	}
	return c.delegate, nil
}

// logCallFailure records an operation failure. The binding is kept:
// only a death notification ends it.
func (c *Connector) logCallFailure(operation string, err error) {
	c.logger.Warn("producer call failed", "operation", operation, "error", err)
}

// Entries returns at most limit of the most recent records on topic,
// most recent first, with the topic's Go types erased.
func (c *Connector) Entries(ctx context.Context, topic record.Codec, limit int) ([]record.Entry, error) {
	delegate, err := c.current()
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("negative record limit %d", limit)
	}
	if limit == 0 {
		return []record.Entry{}, nil
	}

	entries, err := delegate.Records(ctx, topic, limit)
	if err != nil {
		c.logCallFailure("records", err)
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b record.Entry) int {
		return cmp.Compare(b.Offset, a.Offset)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Records returns at most limit of the most recent records on topic,
// most recent first. An entry that does not hold topic's Go types is a
// *record.FormatError.
func Records[K, V any](ctx context.Context, c *Connector, topic *record.Topic[K, V], limit int) ([]record.Record[K, V], error) {
	entries, err := c.Entries(ctx, topic, limit)
	if err != nil {
		return nil, err
	}
	records := make([]record.Record[K, V], 0, len(entries))
	for _, entry := range entries {
		r, err := topic.Convert(entry)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// StartRecording asks the producer to start recording and caches the
// status it reports.
func (c *Connector) StartRecording(ctx context.Context) error {
	delegate, err := c.current()
	if err != nil {
		return err
	}
	before := c.cached.Load().events
	snapshot, err := delegate.StartRecording(ctx)
	if err != nil {
		c.logCallFailure("start_recording", err)
		return err
	}
	// Events travel apart from the reply; one applied meanwhile is newer.
	c.updateCache(func(cell *cachedStatus) {
		if cell.events == before {
			cell.status = snapshot.Status
		}
	})
	return nil
}

// StopRecording asks the producer to stop. The resulting status
// changes arrive as status events.
func (c *Connector) StopRecording(ctx context.Context) error {
	delegate, err := c.current()
	if err != nil {
		return err
	}
	if err := delegate.StopRecording(ctx); err != nil {
		c.logCallFailure("stop_recording", err)
		return err
	}
	return nil
}

// DeviceStatus queries the producer for a fresh snapshot.
func (c *Connector) DeviceStatus(ctx context.Context) (device.Snapshot, error) {
	delegate, err := c.current()
	if err != nil {
		return device.Snapshot{}, err
	}
	snapshot, err := delegate.DeviceStatus(ctx)
	if err != nil {
		c.logCallFailure("device_status", err)
		return device.Snapshot{}, err
	}
	return snapshot, nil
}

func (c *Connector) ServerStatus(ctx context.Context) (device.ServerStatus, error) {
	delegate, err := c.current()
	if err != nil {
		return 0, err
	}
	status, err := delegate.ServerStatus(ctx)
	if err != nil {
		c.logCallFailure("server_status", err)
		return 0, err
	}
	return status, nil
}

// Status returns the cached device status.
func (c *Connector) Status() device.Status { return c.cached.Load().status }

// DeviceName returns the cached device name, empty when unknown.
func (c *Connector) DeviceName() string { return c.cached.Load().name }

// IsRecording reports whether the cached status is anything but
// Disconnected.
func (c *Connector) IsRecording() bool { return c.Status() != device.Disconnected }

// IsScanning reports whether the device is looking for its sensor.
func (c *Connector) IsScanning() bool { return c.Status() == device.Ready }

func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Params returns the parameters of the latest Bind.
func (c *Connector) Params() producer.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// IsRemote reports whether the current binding reaches another process.
func (c *Connector) IsRemote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// HasProducer reports whether a producer handle is held.
func (c *Connector) HasProducer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate != nil
}
