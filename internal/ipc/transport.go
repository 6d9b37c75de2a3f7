package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/autorun-labs/autorun/internal/chanbuf"
	"go.uber.org/zap"
)

// Handler processes one received Message and optionally returns a reply
// to write back on the same connection (e.g. Pong for Ping).
type Handler func(Message) (reply Message, hasReply bool)

// Server listens on a local socket and dispatches each connection's
// message stream to handler, per the "one well-known name; no
// discovery beyond that".
type Server struct {
	network  string
	address  string
	handler  Handler
	logger   *zap.Logger
	listener net.Listener

	mu   sync.Mutex
	outs map[net.Conn]chan<- Message
}

// NewServer constructs a server bound to network/address (e.g. "unix",
// "/tmp/autorun_ipc"), dispatching received messages to handler.
func NewServer(network, address string, handler Handler, logger *zap.Logger) *Server {
	return &Server{network: network, address: address, handler: handler, logger: logger, outs: make(map[net.Conn]chan<- Message)}
}

// Serve listens and accepts connections until ctx is canceled. Each
// connection is handled on its own goroutine; the control surface on top
// of this (internal/control) marshals received RunCode messages onto the
// main-thread queue rather than touching the scripting runtime here.
func (srv *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen(srv.network, srv.address)
	if err != nil {
		return fmt.Errorf("ipc: listen %s %s: %w", srv.network, srv.address, err)
	}
	srv.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ipc: accept: %w", err)
			}
		}
		go srv.handleConn(conn)
	}
}

// handleConn owns one connection's framed reader and its buffered
// writer. Replies and Broadcast messages both go through a per-
// connection chanbuf.Unbounded pipe rather than a direct WriteMessage
// call, so a single stalled controller connection (e.g. a TUI that
// stopped reading) backs up only its own queue instead of blocking the
// goroutine decoding the next request or the caller of Broadcast.
func (srv *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	in, out := chanbuf.Unbounded[Message](16, 4096, srv.logger)
	srv.mu.Lock()
	srv.outs[conn] = in
	srv.mu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range out {
			if err := WriteMessage(conn, msg); err != nil {
				if srv.logger != nil {
					srv.logger.Warn("ipc: write failed", zap.Error(err))
				}
				return
			}
		}
	}()

	defer func() {
		srv.mu.Lock()
		delete(srv.outs, conn)
		srv.mu.Unlock()
		close(in)
		<-writerDone
	}()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if srv.logger != nil {
				srv.logger.Debug("ipc: connection closed", zap.Error(err))
			}
			return
		}

		reply, hasReply := srv.handler(msg)
		if msg.Tag == TagShutdown {
			return
		}
		if !hasReply {
			continue
		}
		in <- reply
	}
}

// Broadcast enqueues msg for delivery to every currently connected
// client (e.g. a Print line the core wants every attached controller to
// see), without blocking on any one connection's write speed.
func (srv *Server) Broadcast(msg Message) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for _, in := range srv.outs {
		in <- msg
	}
}

// Addr returns the listener's bound address, valid only after Serve has
// started listening. Used by tests that bind to an ephemeral path.
func (srv *Server) Addr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

// Dial opens a client connection to a running Server, for the external
// controller (cmd/autorun-ctl) and tests.
func Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}
