package detour

import (
	"reflect"
	"testing"

	"github.com/autorun-labs/autorun/internal/codegen"
	"github.com/stretchr/testify/require"
)

// targetFunc is a small real function we can detour in-process: enough
// instructions that overwriting its first 5 bytes with a JMP doesn't
// clobber anything past the function body, and distinct enough to notice
// if it ran.
//
//go:noinline
func targetFunc() int {
	x := 1
	for i := 0; i < 4; i++ {
		x += i
	}
	return x + 41
}

func addressOf(fn func() int) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

func TestEngineInstallRejectsDuplicateTarget(t *testing.T) {
	e := New()
	addr := addressOf(targetFunc)

	code := make([]byte, 16)
	tramp, err := codegen.Allocate(code)
	require.NoError(t, err)
	defer tramp.Release()

	_, err = e.New(addr, tramp)
	require.NoError(t, err)

	_, err = e.New(addr, tramp)
	require.Error(t, err)
}

func TestRecordEnableDisableRestoresBytes(t *testing.T) {
	e := New()
	addr := addressOf(targetFunc)

	hookCode := make([]byte, 16)
	hook, err := codegen.Allocate(hookCode)
	require.NoError(t, err)
	defer hook.Release()

	rec, err := e.New(addr, hook)
	require.NoError(t, err)

	original := append([]byte(nil), unsafeBytes(addr, patchSize)...)

	require.False(t, rec.Enabled())
	require.NoError(t, rec.Enable())
	require.True(t, rec.Enabled())

	patched := unsafeBytes(addr, patchSize)
	require.Equal(t, byte(0xE9), patched[0])

	require.NoError(t, rec.Disable())
	require.False(t, rec.Enabled())
	require.Equal(t, original, unsafeBytes(addr, patchSize))
}

func TestRecordWithDisabledRestoresEnabledState(t *testing.T) {
	e := New()
	addr := addressOf(targetFunc)

	hook, err := codegen.Allocate(make([]byte, 16))
	require.NoError(t, err)
	defer hook.Release()

	rec, err := e.New(addr, hook)
	require.NoError(t, err)
	require.NoError(t, rec.Enable())

	ran := false
	err = rec.WithDisabled(func() error {
		ran = true
		require.False(t, rec.Enabled())
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, rec.Enabled())

	require.NoError(t, rec.Disable())
}

func TestCallThroughStablePath(t *testing.T) {
	e := New()
	addr := addressOf(targetFunc)

	hook, err := codegen.Allocate(make([]byte, 16))
	require.NoError(t, err)
	defer hook.Release()

	rec, err := e.New(addr, hook)
	require.NoError(t, err)
	require.NotZero(t, rec.CallThrough())

	require.NoError(t, rec.Enable())
	require.NotZero(t, rec.CallThrough())
	require.NoError(t, rec.Disable())
}
