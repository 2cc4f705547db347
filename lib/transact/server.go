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
	"os"
	"sync"
	"time"

	"github.com/radarcns/sensorlink/lib/broadcast"
	"github.com/radarcns/sensorlink/lib/codec"
	"github.com/radarcns/sensorlink/lib/metrics"
	"github.com/radarcns/sensorlink/lib/netutil"
	"github.com/radarcns/sensorlink/lib/parcel"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

// Handler runs one transaction. It reads its arguments from request
// and writes its result to reply. The server rejects the transaction
// if the handler leaves request bytes unread. Returning an error sends
// a failure response; anything written to reply is discarded.
type Handler func(ctx context.Context, request *parcel.Reader, reply *parcel.Writer) error

// Server serves transactions on a Unix socket.
type Server struct {
	socketPath string
	logger     *slog.Logger
	handlers   map[Code]Handler
	metrics    *metrics.Metrics

	// status feeds SubscribeStatus streams. Nil disables them.
	status broadcast.Channel

	activeConnections sync.WaitGroup
}

// NewServer creates a server that will listen on socketPath. status may
// be nil, in which case SubscribeStatus requests fail.
func NewServer(socketPath string, status broadcast.Channel, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		logger:     logger,
		handlers:   make(map[Code]Handler),
		status:     status,
	}
}

// SetMetrics makes the server count the transactions it serves. Call
// before Serve.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Handle registers handler for code. Panics on a duplicate
// registration, a system code, or after Serve has started.
func (s *Server) Handle(code Code, handler Handler) {
	if code.IsSystem() {
		panic(fmt.Sprintf("transact.Server: %s is in the reserved system range", code))
	}
	if _, exists := s.handlers[code]; exists {
		panic(fmt.Sprintf("transact.Server: duplicate handler for %s", code))
	}
	s.handlers[code] = handler
}

// Serve accepts connections until ctx is cancelled. On cancellation it
// stops accepting, closes every open death link and status stream, and
// waits for active handlers before returning.
//
// A stale socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("transaction server listening", "socket", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger
	if pid, ok := peerPID(conn); ok {
		logger = logger.With("peer_pid", pid)
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so the envelope needs no framing.
	var request Request
	decoder := codec.NewDecoder(io.LimitReader(conn, maxMessageSize))
	if err := decoder.Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeResponse(logger, conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	switch request.Code {
	case Ping:
		s.writeResponse(logger, conn, Response{Code: Ping, OK: true})
	case LinkToDeath:
		s.holdDeathLink(ctx, logger, conn)
	case SubscribeStatus:
		s.streamStatus(ctx, logger, conn)
	default:
		s.dispatch(ctx, logger, conn, request)
	}
}

func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, conn net.Conn, request Request) {
	oneWay := request.Flags&FlagOneWay != 0
	start := time.Now()

	handler, exists := s.handlers[request.Code]
	if !exists {
		logger.Debug("unknown transaction code", "code", request.Code)
		s.metrics.ObserveHandled(request.Code.String(), metrics.ResultProtocol, time.Since(start))
		if !oneWay {
			s.writeResponse(logger, conn, Response{
				Code:  request.Code,
				Error: fmt.Sprintf("unknown transaction code %s", request.Code),
			})
		}
		return
	}

	requestReader := parcel.NewReader(request.Data)
	reply := parcel.NewWriter(64)
	err := handler(ctx, requestReader, reply)
	if err == nil {
		if unread := requestReader.Finish(); unread != nil {
			err = fmt.Errorf("malformed request body: %w", unread)
		}
	}
	if err != nil {
		s.metrics.ObserveHandled(request.Code.String(), metrics.ResultRemote, time.Since(start))
		logger.Debug("transaction failed", "code", request.Code, "error", err)
		if !oneWay {
			s.writeResponse(logger, conn, Response{Code: request.Code, Error: err.Error()})
		}
		return
	}
	s.metrics.ObserveHandled(request.Code.String(), metrics.ResultOK, time.Since(start))
	if oneWay {
		return
	}
	s.writeResponse(logger, conn, Response{Code: request.Code, OK: true, Data: reply.Bytes()})
}

// holdDeathLink acknowledges the link and keeps the connection open
// until the server shuts down or the client unlinks.
func (s *Server) holdDeathLink(ctx context.Context, logger *slog.Logger, conn net.Conn) {
	if !s.writeResponse(logger, conn, Response{Code: LinkToDeath, OK: true}) {
		return
	}
	conn.SetDeadline(time.Time{})

	clientGone := watchClose(conn)
	select {
	case <-ctx.Done():
		logger.Debug("closing death link for shutdown")
	case <-clientGone:
	}
}

// streamStatus acknowledges the subscription and writes one CBOR
// StatusEvent per published status change.
func (s *Server) streamStatus(ctx context.Context, logger *slog.Logger, conn net.Conn) {
	if s.status == nil {
		s.writeResponse(logger, conn, Response{
			Code:  SubscribeStatus,
			Error: "status stream not supported",
		})
		return
	}

	// Subscribe before acknowledging so no event published after the
	// client sees the ack is missed. Events wait on acked.
	acked := make(chan struct{})
	broken := make(chan struct{})
	var brokenOnce sync.Once
	encoder := codec.NewEncoder(conn)

	unsubscribe, err := s.status.Subscribe(func(event device.StatusEvent) {
		select {
		case <-acked:
		case <-broken:
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := encoder.Encode(event); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("writing status event failed", "error", err)
			}
			brokenOnce.Do(func() { close(broken) })
		}
	})
	if err != nil {
		s.writeResponse(logger, conn, Response{Code: SubscribeStatus, Error: err.Error()})
		return
	}
	defer unsubscribe()

	if !s.writeResponse(logger, conn, Response{Code: SubscribeStatus, OK: true}) {
		brokenOnce.Do(func() { close(broken) })
		return
	}
	conn.SetReadDeadline(time.Time{})
	close(acked)

	clientGone := watchClose(conn)
	select {
	case <-ctx.Done():
		logger.Debug("closing status stream for shutdown")
	case <-clientGone:
	case <-broken:
	}
	brokenOnce.Do(func() { close(broken) })
}

// watchClose returns a channel closed when the peer closes its end or
// the connection fails.
func watchClose(conn net.Conn) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		io.Copy(io.Discard, conn)
	}()
	return gone
}

// writeResponse reports whether the response was written. Failures are
// logged at debug level: the connection is closing either way.
func (s *Server) writeResponse(logger *slog.Logger, conn net.Conn, response Response) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		logger.Debug("failed to write response", "code", response.Code, "error", err)
		return false
	}
	return true
}
