package locate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyObject(t *testing.T) {
	v, err := Parse(`"foo" {}`)
	require.NoError(t, err)
	foo, ok := v.Get("foo")
	require.True(t, ok)
	require.True(t, foo.IsObject)
	require.Empty(t, foo.Object)
}

func TestParseStringValue(t *testing.T) {
	v, err := Parse(`"bar" "12"`)
	require.NoError(t, err)
	bar, ok := v.Get("bar")
	require.True(t, ok)
	require.Equal(t, "12", bar.Str)
}

func TestParseNestedLibraryFolders(t *testing.T) {
	const doc = `"libraryfolders"
{
	"0"
	{
		"path"		"/home/user/.steam/steam"
		"apps"
		{
			"228980"		"1234"
		}
	}
	"1"
	{
		"path"		"/mnt/games/SteamLibrary"
		"apps"
		{
			"4000"		"5678"
		}
	}
}`
	v, err := Parse(doc)
	require.NoError(t, err)

	libraryfolders, ok := v.Get("libraryfolders")
	require.True(t, ok)
	require.True(t, libraryfolders.IsObject)
	require.Len(t, libraryfolders.Object, 2)

	second, ok := libraryfolders.Get("1")
	require.True(t, ok)
	path, ok := second.Get("path")
	require.True(t, ok)
	require.Equal(t, "/mnt/games/SteamLibrary", path.Str)
}

func TestParseEscapedQuoteAndNewline(t *testing.T) {
	v, err := Parse(`"k" "a\"b\nc"`)
	require.NoError(t, err)
	k, ok := v.Get("k")
	require.True(t, ok)
	require.Equal(t, "a\"b\nc", k.Str)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := Parse(`"k" "v" }`)
	require.Error(t, err)
}

func TestParseRejectsUnterminatedObject(t *testing.T) {
	_, err := Parse(`"k" { "a" "b"`)
	require.Error(t, err)
}

func TestGModDirFindsLibraryListingAppID(t *testing.T) {
	dir := t.TempDir()
	steamapps := filepath.Join(dir, "steamapps")
	require.NoError(t, os.MkdirAll(steamapps, 0o755))

	manifest := `"libraryfolders"
{
	"0"
	{
		"path"		"` + dir + `"
		"apps"
		{
			"4000"		"1"
		}
	}
}`
	require.NoError(t, os.WriteFile(filepath.Join(steamapps, "libraryfolders.vdf"), []byte(manifest), 0o644))

	t.Setenv("STEAM_DIR", dir)
	t.Setenv("GMOD_DIR", "")

	got, err := GModDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "steamapps", "common", "GarrysMod"), got)
}

func TestGModDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("GMOD_DIR", "/opt/gmod")
	got, err := GModDir()
	require.NoError(t, err)
	require.Equal(t, "/opt/gmod", got)
}

func TestSteamInstallDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("STEAM_DIR", "/opt/steam")
	got, err := SteamInstallDir()
	require.NoError(t, err)
	require.Equal(t, "/opt/steam", got)
}
