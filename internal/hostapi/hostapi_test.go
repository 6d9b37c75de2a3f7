package hostapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autorun-labs/autorun/internal/workspace"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlugin(t *testing.T) *workspace.Plugin {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.toml"), []byte(`[plugin]
name = "test"
author = "a"
version = "1"
description = "d"
language = "native"
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "client"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "client", "init.lua"), []byte(""), 0o644))

	p, err := workspace.FromDir(dir)
	require.NoError(t, err)
	return p
}

func TestWriteReadRoundTrip(t *testing.T) {
	api := New(zap.NewNop(), nil)
	p := newTestPlugin(t)
	handle := RegisterPlugin(p)
	defer ReleasePlugin(handle)

	require.EqualValues(t, StatusOK, api.Write(handle, "out.bin", []byte("ABC")))

	buf := make([]byte, 16)
	n := api.Read(handle, "out.bin", buf)
	require.EqualValues(t, 3, n)
	require.Equal(t, []byte("ABC"), buf[:n])

	require.EqualValues(t, 3, api.ReadSize(handle, "out.bin"))
}

func TestMkdirUnderDataDir(t *testing.T) {
	api := New(zap.NewNop(), nil)
	p := newTestPlugin(t)
	handle := RegisterPlugin(p)
	defer ReleasePlugin(handle)

	require.EqualValues(t, StatusOK, api.Mkdir(handle, "a/b"))
	info, err := os.Stat(filepath.Join(p.DataDir(), "a", "b"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNilHandleReturnsNullHandleStatus(t *testing.T) {
	api := New(zap.NewNop(), nil)
	require.EqualValues(t, StatusNullHandle, api.Write(nil, "x", []byte("y")))
	require.EqualValues(t, StatusNullHandle, api.Mkdir(nil, "x"))
}

func TestReadMissingFileReturnsIOError(t *testing.T) {
	api := New(zap.NewNop(), nil)
	p := newTestPlugin(t)
	handle := RegisterPlugin(p)
	defer ReleasePlugin(handle)

	require.EqualValues(t, StatusIOError, api.ReadSize(handle, "missing.bin"))
}
