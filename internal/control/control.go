// Package control wires received cross-process messages (internal/ipc)
// into core operations: enqueuing RunCode onto the main-thread queue,
// applying SetWorkspacePath, and forwarding Print/Shutdown. The
// cross-process link receives run-code requests and enqueues a closure
// onto the main-thread queue.
package control

import (
	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/ipc"
	"github.com/autorun-labs/autorun/internal/mainqueue"
	"github.com/autorun-labs/autorun/internal/realm"
	"go.uber.org/zap"
)

// Executor runs a RunCode payload's source under the correct realm's
// sandbox environment, implemented by internal/sandbox.Env.Execute in the
// runtime layer.
type Executor interface {
	Execute(name string, body []byte) error
}

// Runtime is the subset of the top-level runtime object control needs:
// realm lookup for dispatching RunCode, a workspace-path setter, and a
// shutdown trigger.
type Runtime interface {
	SandboxFor(re realm.Realm) (Executor, bool)
	SetWorkspacePath(path string)
	RequestShutdown()
}

// Handler adapts Runtime into an ipc.Handler.
type Handler struct {
	rt     Runtime
	queue  *mainqueue.Queue
	logger *zap.Logger
}

// New constructs a control handler over rt and the shared main-thread
// queue.
func New(rt Runtime, queue *mainqueue.Queue, logger *zap.Logger) *Handler {
	return &Handler{rt: rt, queue: queue, logger: logger}
}

// Handle implements ipc.Handler.
func (h *Handler) Handle(msg ipc.Message) (ipc.Message, bool) {
	switch msg.Tag {
	case ipc.TagPing:
		return ipc.Pong(), true

	case ipc.TagPrint:
		if h.logger != nil {
			h.logger.Info("ipc: print", zap.String("text", msg.Text))
		}
		return ipc.Message{}, false

	case ipc.TagRunCode:
		re := msg.Realm
		source := msg.Source
		h.queue.Enqueue(func(ffi.VM) {
			exec, ok := h.rt.SandboxFor(re)
			if !ok {
				if h.logger != nil {
					h.logger.Warn("ipc: run-code for realm with no sandbox yet", zap.String("realm", re.String()))
				}
				return
			}
			// Stable chunk name: every run-code dispatch executes
			// under the chunk name "@RunString".
			if err := exec.Execute("@RunString", []byte(source)); err != nil && h.logger != nil {
				h.logger.Warn("ipc: run-code failed", zap.String("realm", re.String()), zap.Error(err))
			}
		})
		return ipc.Message{}, false

	case ipc.TagSetWorkspacePath:
		h.rt.SetWorkspacePath(msg.Path)
		return ipc.Message{}, false

	case ipc.TagShutdown:
		h.rt.RequestShutdown()
		return ipc.Message{}, false

	default:
		return ipc.Message{}, false
	}
}

