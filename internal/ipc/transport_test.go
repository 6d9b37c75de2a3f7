package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeRoundTripPingPong(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "autorun_ipc_test")

	var received []Message
	handler := func(msg Message) (Message, bool) {
		received = append(received, msg)
		if msg.Tag == TagPing {
			return Pong(), true
		}
		return Message{}, false
	}

	srv := NewServer("unix", sockPath, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Serve(ctx) }()
	waitForSocket(t, sockPath)

	conn, err := Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteMessage(conn, Ping()))
	reply, err := ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, Pong(), reply)
}

func TestServeShutdownClosesConnection(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "autorun_ipc_test2")

	handler := func(Message) (Message, bool) { return Message{}, false }
	srv := NewServer("unix", sockPath, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Serve(ctx) }()
	waitForSocket(t, sockPath)

	conn, err := Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteMessage(conn, Shutdown()))

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err) // connection closed by the server after Shutdown
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "autorun_ipc_test3")

	handler := func(Message) (Message, bool) { return Message{}, false }
	srv := NewServer("unix", sockPath, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Serve(ctx) }()
	waitForSocket(t, sockPath)

	a, err := Dial("unix", sockPath)
	require.NoError(t, err)
	defer a.Close()
	b, err := Dial("unix", sockPath)
	require.NoError(t, err)
	defer b.Close()

	// Give both connections' handler goroutines time to register their
	// outgoing queue before broadcasting.
	time.Sleep(50 * time.Millisecond)

	srv.Broadcast(Print("hello controllers"))

	for _, conn := range []net.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msg, err := ReadMessage(conn)
		require.NoError(t, err)
		require.Equal(t, Print("hello controllers"), msg)
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := Dial("unix", path)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", path)
}
