package main

import (
	"net"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autorun-labs/autorun/internal/ipc"
	"github.com/autorun-labs/autorun/internal/realm"
)

// connState mirrors the "controller UI mirror": a client that
// retries connect() every 2s while disconnected and pings every 5s while
// connected, transitioning to disconnected on any send failure.
type connState int

const (
	disconnected connState = iota
	connected
)

type connectedMsg struct{ conn net.Conn }
type disconnectedMsg struct{ err error }
type lineMsg struct{ text string }

// client owns the socket and reports connection changes and received
// lines to the Bubble Tea program by calling tea.Program.Send directly
// from its connect and read paths.
type client struct {
	network, address string
	program           *tea.Program

	mu    sync.Mutex
	state connState
	conn  net.Conn
}

func newClient(network, address string) *client {
	return &client{network: network, address: address, state: disconnected}
}

func (c *client) attachProgram(p *tea.Program) { c.program = p }

// run drives reconnect-every-2s / ping-every-5s / read-loop, until done
// is closed.
func (c *client) run(done <-chan struct{}) {
	reconnect := time.NewTicker(2 * time.Second)
	defer reconnect.Stop()
	ping := time.NewTicker(5 * time.Second)
	defer ping.Stop()

	c.tryConnect()

	for {
		select {
		case <-done:
			return
		case <-reconnect.C:
			if c.currentState() == disconnected {
				c.tryConnect()
			}
		case <-ping.C:
			if c.currentState() == connected {
				c.send(ipc.Ping())
			}
		}
	}
}

func (c *client) currentState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *client) tryConnect() {
	conn, err := ipc.Dial(c.network, c.address)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.state = connected
	c.mu.Unlock()

	if c.program != nil {
		c.program.Send(connectedMsg{conn: conn})
	}
	go c.readLoop(conn)
}

func (c *client) readLoop(conn net.Conn) {
	for {
		msg, err := ipc.ReadMessage(conn)
		if err != nil {
			c.disconnect(err)
			return
		}
		if msg.Tag == ipc.TagPrint {
			if c.program != nil {
				c.program.Send(lineMsg{text: msg.Text})
			}
		}
	}
}

func (c *client) disconnect(err error) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.state = disconnected
	c.mu.Unlock()

	if c.program != nil {
		c.program.Send(disconnectedMsg{err: err})
	}
}

// send writes msg to the active connection; a write failure transitions
// to disconnected.
func (c *client) send(msg ipc.Message) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if err := ipc.WriteMessage(conn, msg); err != nil {
		c.disconnect(err)
	}
}

// RunCode submits source for execution under re.
func (c *client) RunCode(re realm.Realm, source string) {
	c.send(ipc.RunCode(re, source))
}
