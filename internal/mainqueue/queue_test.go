package mainqueue

import (
	"testing"

	"github.com/autorun-labs/autorun/internal/ffi"
	"github.com/stretchr/testify/require"
)

type fakeHook struct {
	saved, cleared, restored int
}

func (f *fakeHook) Save(ffi.VM) any {
	f.saved++
	return "snapshot"
}

func (f *fakeHook) Clear(ffi.VM) {
	f.cleared++
}

func (f *fakeHook) Restore(vm ffi.VM, snapshot any) {
	f.restored++
	if snapshot != "snapshot" {
		panic("unexpected snapshot value")
	}
}

func TestDrainOneRunsExactlyOneJob(t *testing.T) {
	q := New(nil)
	var ran []int
	q.Enqueue(func(ffi.VM) { ran = append(ran, 1) })
	q.Enqueue(func(ffi.VM) { ran = append(ran, 2) })

	require.Equal(t, 2, q.Len())
	q.DrainOne(0)
	require.Equal(t, []int{1}, ran)
	require.Equal(t, 1, q.Len())

	q.DrainOne(0)
	require.Equal(t, []int{1, 2}, ran)
	require.Equal(t, 0, q.Len())
}

func TestDrainOneOnEmptyQueueIsNoop(t *testing.T) {
	q := New(nil)
	require.NotPanics(t, func() { q.DrainOne(0) })
}

func TestDrainOneSnapshotsClearsAndRestoresHook(t *testing.T) {
	hook := &fakeHook{}
	q := New(hook)
	q.Enqueue(func(ffi.VM) {})

	q.DrainOne(0)

	require.Equal(t, 1, hook.saved)
	require.Equal(t, 1, hook.cleared)
	require.Equal(t, 1, hook.restored)
}

func TestDrainOneRestoresHookEvenIfJobPanics(t *testing.T) {
	hook := &fakeHook{}
	q := New(hook)
	q.Enqueue(func(ffi.VM) { panic("boom") })

	require.Panics(t, func() { q.DrainOne(0) })
	require.Equal(t, 1, hook.saved)
	require.Equal(t, 1, hook.cleared)
	require.Equal(t, 1, hook.restored)
}
