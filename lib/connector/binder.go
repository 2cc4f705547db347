// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/radarcns/sensorlink/lib/clock"
	"github.com/radarcns/sensorlink/lib/producer"
	"github.com/radarcns/sensorlink/lib/transact"
)

// BinderFunc adapts a function to Binder.
type BinderFunc func(ctx context.Context, params producer.Params) (any, error)

func (f BinderFunc) Bind(ctx context.Context, params producer.Params) (any, error) {
	return f(ctx, params)
}

// LocalBinder binds to an in-process Device. The device is created on
// the first bind and reused by later binds, which only replace its
// params.
type LocalBinder struct {
	factory func(producer.Params) (*producer.Device, error)

	mu     sync.Mutex
	device *producer.Device
}

func NewLocalBinder(factory func(producer.Params) (*producer.Device, error)) *LocalBinder {
	return &LocalBinder{factory: factory}
}

func (b *LocalBinder) Bind(ctx context.Context, params producer.Params) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		device, err := b.factory(params)
		if err != nil {
			return nil, fmt.Errorf("creating local producer: %w", err)
		}
		b.device = device
	}
	b.device.SetParams(params)
	return b.device, nil
}

// Device returns the device created by the first bind, or nil.
func (b *LocalBinder) Device() *producer.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device
}

// SocketBinder binds to a producer already serving on a socket.
type SocketBinder struct {
	socketPath string
	options    transact.ClientOptions
}

func NewSocketBinder(socketPath string, options transact.ClientOptions) *SocketBinder {
	return &SocketBinder{socketPath: socketPath, options: options}
}

// Bind pings the producer and returns a client for it. Params are not
// sent: a running producer was configured when it started.
func (b *SocketBinder) Bind(ctx context.Context, params producer.Params) (any, error) {
	client := transact.NewClient(b.socketPath, b.options)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("producer at %s: %w", b.socketPath, err)
	}
	return client, nil
}

// ProcessBinderOptions configure a ProcessBinder.
type ProcessBinderOptions struct {
	SocketPath string
	// Binary is the producer executable, resolved through PATH.
	Binary string
	// Args are passed after "--socket <SocketPath>".
	Args []string
	// StartupTimeout bounds the wait for a spawned producer to
	// answer. Default 10s.
	StartupTimeout time.Duration
	// PollInterval is the delay between pings during startup.
	// Default 50ms.
	PollInterval time.Duration
	Client       transact.ClientOptions
	Clock        clock.Clock
	Logger       *slog.Logger
}

// ProcessBinder binds to the producer on a socket, spawning the
// producer binary when nothing answers there. Params reach a spawned
// producer through its environment.
type ProcessBinder struct {
	options ProcessBinderOptions

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

func NewProcessBinder(options ProcessBinderOptions) *ProcessBinder {
	if options.StartupTimeout <= 0 {
		options.StartupTimeout = 10 * time.Second
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 50 * time.Millisecond
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &ProcessBinder{options: options}
}

func (b *ProcessBinder) Bind(ctx context.Context, params producer.Params) (any, error) {
	client := transact.NewClient(b.options.SocketPath, b.options.Client)
	if err := client.Ping(ctx); err == nil {
		return client, nil
	}

	exited, err := b.spawn(params)
	if err != nil {
		return nil, err
	}

	deadline := b.options.Clock.After(b.options.StartupTimeout)
	for {
		if err := client.Ping(ctx); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, fmt.Errorf("producer %s exited during startup", b.options.Binary)
		case <-deadline:
			return nil, fmt.Errorf("producer %s did not answer on %s within %s",
				b.options.Binary, b.options.SocketPath, b.options.StartupTimeout)
		case <-b.options.Clock.After(b.options.PollInterval):
		}
	}
}

// spawn starts the producer unless one started by b is still running.
func (b *ProcessBinder) spawn(params producer.Params) (<-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd != nil {
		select {
		case <-b.exited:
		default:
			return b.exited, nil
		}
	}

	args := append([]string{"--socket", b.options.SocketPath}, b.options.Args...)
	cmd := exec.Command(b.options.Binary, args...)
	cmd.Env = append(os.Environ(), params.Env()...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting producer %s: %w", b.options.Binary, err)
	}
	b.options.Logger.Info("producer process started",
		"binary", b.options.Binary,
		"pid", cmd.Process.Pid,
		"socket", b.options.SocketPath,
	)

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		b.options.Logger.Info("producer process exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()
	b.cmd = cmd
	b.exited = exited
	return exited, nil
}

// Stop terminates a producer spawned by b, killing it when it has not
// exited within timeout. It is a no-op when nothing was spawned.
func (b *ProcessBinder) Stop(timeout time.Duration) error {
	b.mu.Lock()
	cmd, exited := b.cmd, b.exited
	b.cmd, b.exited = nil, nil
	b.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signalling producer: %w", err)
	}
	select {
	case <-exited:
		return nil
	case <-b.options.Clock.After(timeout):
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing producer: %w", err)
	}
	<-exited
	return nil
}
