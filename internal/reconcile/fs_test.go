package reconcile

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "file.conf")

	changed, err := writeFileIfChanged(path, []byte("hello\n"), 0o600)
	require.NoError(t, err)
	assert.True(t, changed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	// Same content again is a no-op.
	changed, err = writeFileIfChanged(path, []byte("hello\n"), 0o600)
	require.NoError(t, err)
	assert.False(t, changed)

	// Different content rewrites.
	changed, err = writeFileIfChanged(path, []byte("world\n"), 0o600)
	require.NoError(t, err)
	assert.True(t, changed)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "world\n", string(b))
}

func TestWriteFileIfChangedEnforcesMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.env")
	require.NoError(t, os.WriteFile(path, []byte("WEBUI_SECRET_KEY=x\n"), 0o644))

	// Content unchanged, but a drifted mode is corrected.
	changed, err := writeFileIfChanged(path, []byte("WEBUI_SECRET_KEY=x\n"), 0o600)
	require.NoError(t, err)
	assert.False(t, changed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
}
