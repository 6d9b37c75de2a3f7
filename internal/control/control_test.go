package control

import (
	"errors"
	"testing"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/autorun-labs/autorun/internal/ipc"
	"github.com/autorun-labs/autorun/internal/mainqueue"
	"github.com/autorun-labs/autorun/internal/realm"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	executed []string
	err      error
}

func (f *fakeExecutor) Execute(name string, body []byte) error {
	f.executed = append(f.executed, name+":"+string(body))
	return f.err
}

type fakeRuntime struct {
	sandboxes        map[realm.Realm]Executor
	workspacePath     string
	shutdownRequested bool
}

func (f *fakeRuntime) SandboxFor(re realm.Realm) (Executor, bool) {
	e, ok := f.sandboxes[re]
	return e, ok
}

func (f *fakeRuntime) SetWorkspacePath(path string) { f.workspacePath = path }
func (f *fakeRuntime) RequestShutdown()             { f.shutdownRequested = true }

func TestHandlePingRepliesPong(t *testing.T) {
	h := New(&fakeRuntime{}, mainqueue.New(nil), nil)
	reply, ok := h.Handle(ipc.Ping())
	require.True(t, ok)
	require.Equal(t, ipc.Pong(), reply)
}

func TestHandleRunCodeEnqueuesAgainstCorrectRealm(t *testing.T) {
	exec := &fakeExecutor{}
	rt := &fakeRuntime{sandboxes: map[realm.Realm]Executor{realm.Client: exec}}
	q := mainqueue.New(nil)
	h := New(rt, q, nil)

	_, ok := h.Handle(ipc.RunCode(realm.Client, "Autorun.print('hi')"))
	require.False(t, ok)
	require.Equal(t, 1, q.Len())

	q.DrainOne(ffi.VM(0))
	require.Equal(t, []string{"@RunString:Autorun.print('hi')"}, exec.executed)
}

func TestHandleRunCodeMissingRealmDoesNotPanic(t *testing.T) {
	rt := &fakeRuntime{sandboxes: map[realm.Realm]Executor{}}
	q := mainqueue.New(nil)
	h := New(rt, q, nil)

	h.Handle(ipc.RunCode(realm.Menu, "x=1"))
	require.NotPanics(t, func() { q.DrainOne(ffi.VM(0)) })
}

func TestHandleSetWorkspacePath(t *testing.T) {
	rt := &fakeRuntime{}
	h := New(rt, mainqueue.New(nil), nil)

	h.Handle(ipc.SetWorkspacePath("/tmp/ws"))
	require.Equal(t, "/tmp/ws", rt.workspacePath)
}

func TestHandleShutdown(t *testing.T) {
	rt := &fakeRuntime{}
	h := New(rt, mainqueue.New(nil), nil)

	h.Handle(ipc.Shutdown())
	require.True(t, rt.shutdownRequested)
}

func TestHandleRunCodeLogsExecutionError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("boom")}
	rt := &fakeRuntime{sandboxes: map[realm.Realm]Executor{realm.Client: exec}}
	q := mainqueue.New(nil)
	h := New(rt, q, nil)

	h.Handle(ipc.RunCode(realm.Client, "bad"))
	require.NotPanics(t, func() { q.DrainOne(ffi.VM(0)) })
}
