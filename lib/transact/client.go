// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package transact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radarcns/sensorlink/lib/codec"
	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/netutil"
	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

// ClientOptions configures a Client. Zero values select defaults.
type ClientOptions struct {
	// CallTimeout bounds each transaction from dial to decoded reply.
	CallTimeout time.Duration
	// DialTimeout bounds the connect phase.
	DialTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Client sends transactions to a producer's socket. Each call opens a
// new connection. A Client is the handle a remote binder returns; it
// is safe for concurrent use.
type Client struct {
	socketPath  string
	callTimeout time.Duration
	dialTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewClient(socketPath string, options ClientOptions) *Client {
	if options.CallTimeout <= 0 {
		options.CallTimeout = DefaultCallTimeout
	}
	if options.DialTimeout <= 0 {
		options.DialTimeout = DefaultDialTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		socketPath:  socketPath,
		callTimeout: options.CallTimeout,
		dialTimeout: options.DialTimeout,
		logger:      options.Logger.With("socket", socketPath),
		metrics:     options.Metrics,
	}
}

// Endpoint returns the socket path the client dials.
func (c *Client) Endpoint() string { return c.socketPath }

// Call runs one transaction. request is the encoded request body (nil
// for an empty body). reply, if non-nil, decodes the reply body and
// must consume all of it; a nil reply requires an empty body.
//
// Errors from reply are wrapped in a ProtocolError, except a
// *record.FormatError, which is returned unchanged.
func (c *Client) Call(ctx context.Context, code Code, request []byte, reply func(*parcel.Reader) error) error {
	start := time.Now()
	err := c.call(ctx, code, 0, request, reply)
	c.metrics.ObserveCall(code.String(), resultLabel(err), time.Since(start))
	return err
}

// Send runs a one-way transaction: it returns once the request is
// written and never sees the handler's outcome.
func (c *Client) Send(ctx context.Context, code Code, request []byte) error {
	start := time.Now()
	err := c.call(ctx, code, FlagOneWay, request, nil)
	c.metrics.ObserveCall(code.String(), resultLabel(err), time.Since(start))
	return err
}

// Ping checks that a server is answering on the socket.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, Ping, nil, nil)
}

func (c *Client) call(ctx context.Context, code Code, flags Flags, request []byte, reply func(*parcel.Reader) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return &TransportError{Op: "dial", Code: code, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	// Cancellation of the caller's context interrupts blocked I/O.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(Request{Code: code, Flags: flags, Data: request}); err != nil {
		return &TransportError{Op: "write", Code: code, Err: contextCause(ctx, err)}
	}
	if flags&FlagOneWay != 0 {
		return nil
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&response); err != nil {
		return &TransportError{Op: "read", Code: code, Err: contextCause(ctx, err)}
	}
	return finishReply(code, response, reply)
}

func finishReply(code Code, response Response, reply func(*parcel.Reader) error) error {
	if response.Code != code {
		return &ProtocolError{Code: code, Err: fmt.Errorf("response code %s does not match request", response.Code)}
	}
	if !response.OK {
		return &RemoteError{Code: code, Message: response.Error}
	}

	body := parcel.NewReader(response.Data)
	if reply != nil {
		if err := reply(body); err != nil {
			var formatError *record.FormatError
			if errors.As(err, &formatError) {
				return err
			}
			return &ProtocolError{Code: code, Err: err}
		}
	}
	if err := body.Finish(); err != nil {
		return &ProtocolError{Code: code, Err: err}
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	return dialer.DialContext(ctx, "unix", c.socketPath)
}

// contextCause prefers the context's error when an I/O failure was
// caused by cancellation or the call deadline.
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	// The socket deadline can expire a moment before the context timer.
	if deadline, ok := ctx.Deadline(); ok && netutil.IsTimeout(err) && !time.Now().Before(deadline) {
		return fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
	}
	return err
}

// openStream runs the handshake of a long-lived system transaction and
// returns the connection with its deadlines cleared, plus the decoder
// that read the acknowledgement (it may hold buffered stream bytes).
func (c *Client) openStream(ctx context.Context, code Code) (net.Conn, *codec.Decoder, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, nil, &TransportError{Op: "dial", Code: code, Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(Request{Code: code}); err != nil {
		conn.Close()
		return nil, nil, &TransportError{Op: "write", Code: code, Err: contextCause(ctx, err)}
	}
	decoder := codec.NewDecoder(conn)
	var response Response
	if err := decoder.Decode(&response); err != nil {
		conn.Close()
		return nil, nil, &TransportError{Op: "read", Code: code, Err: contextCause(ctx, err)}
	}
	if err := finishReply(code, response, nil); err != nil {
		conn.Close()
		return nil, nil, err
	}

	conn.SetDeadline(time.Time{})
	return conn, decoder, nil
}

// LinkToDeath registers recipient to run once, on its own goroutine,
// when the producer behind the socket goes away. unlink cancels the
// registration; recipient is not called for a link that was unlinked.
func (c *Client) LinkToDeath(ctx context.Context, recipient func()) (unlink func(), err error) {
	conn, _, err := c.openStream(ctx, LinkToDeath)
	if err != nil {
		return nil, err
	}

	var unlinked atomic.Bool
	go func() {
		// The server never writes after the acknowledgement, so this
		// returns only when the connection ends.
		_, err := io.Copy(io.Discard, conn)
		if unlinked.Load() {
			return
		}
		if err != nil && !netutil.IsExpectedCloseError(err) {
			c.logger.Debug("death link ended with error", "error", err)
		}
		recipient()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unlinked.Store(true)
			conn.Close()
		})
	}, nil
}

// Subscribe implements broadcast.Channel over a SubscribeStatus
// stream. The stream ends, without further handler calls, when the
// producer goes away; death is reported through LinkToDeath.
func (c *Client) Subscribe(handler func(device.StatusEvent)) (unsubscribe func(), err error) {
	conn, decoder, err := c.openStream(context.Background(), SubscribeStatus)
	if err != nil {
		return nil, err
	}

	var stopped atomic.Bool
	go func() {
		for {
			var event device.StatusEvent
			if err := decoder.Decode(&event); err != nil {
				if !stopped.Load() && !netutil.IsExpectedCloseError(err) {
					c.logger.Debug("status stream ended with error", "error", err)
				}
				return
			}
			if stopped.Load() {
				return
			}
			handler(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			conn.Close()
		})
	}, nil
}

func resultLabel(err error) string {
	var transportError *TransportError
	var protocolError *ProtocolError
	var remoteError *RemoteError
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &transportError):
		return metrics.ResultTransport
	case errors.As(err, &protocolError):
		return metrics.ResultProtocol
	case errors.As(err, &remoteError):
		return metrics.ResultRemote
	default:
		return metrics.ResultFailed
	}
}
