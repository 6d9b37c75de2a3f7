package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPreludeScriptsEmbedded verifies every chunk named in the
// construction list is actually bundled into the binary, since a typo in
// the embed directive fails at compile time but a missing *file* would
// only fail at runtime.
func TestPreludeScriptsEmbedded(t *testing.T) {
	for _, name := range preludeOrder {
		body, err := preludeScripts.ReadFile(name)
		require.NoError(t, err, "prelude chunk %s must be embedded", name)
		require.NotEmpty(t, body)
	}
}

func TestPreludeOrderIsBuiltinsIncludeRequireEvent(t *testing.T) {
	require.Equal(t, []string{
		"prelude/builtins.lua",
		"prelude/include.lua",
		"prelude/require.lua",
		"prelude/event.lua",
	}, preludeOrder)
}
