package runtime

import (
	"testing"

	"github.com/autorun-labs/autorun/internal/control"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRuntimeHasEmptyStats(t *testing.T) {
	rt, err := New(zap.NewNop())
	require.NoError(t, err)

	stats := rt.Stats()
	require.Equal(t, 0, stats.MainQueueLen)
	require.False(t, stats.MenuEnvActive)
	require.False(t, stats.ClientEnvActive)
}

func TestRuntimeImplementsControlRuntime(t *testing.T) {
	var _ control.Runtime = (*Runtime)(nil)
}

func TestSetWorkspacePathOpensWorkspace(t *testing.T) {
	rt, err := New(zap.NewNop())
	require.NoError(t, err)

	root := t.TempDir()
	rt.SetWorkspacePath(root)

	ws, err := rt.Workspace()
	require.NoError(t, err)
	require.Equal(t, root, ws.Root())
}

func TestRecordDetourInstalledAndPluginCount(t *testing.T) {
	rt, err := New(zap.NewNop())
	require.NoError(t, err)

	rt.RecordDetourInstalled()
	rt.RecordDetourInstalled()
	rt.SetPluginCount(3)

	stats := rt.Stats()
	require.Equal(t, 2, stats.DetoursTotal)
	require.Equal(t, 3, stats.PluginCount)
}
