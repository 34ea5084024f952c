package reconcile

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAuthorizedKeys(t *testing.T) {
	key := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIKey dev@laptop"

	t.Run("creates the file with mode 0600", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authorized_keys")
		added, err := syncAuthorizedKeys(path, key)
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("creates the file even when the input holds no keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authorized_keys")
		added, err := syncAuthorizedKeys(path, "# only a comment\n")
		require.NoError(t, err)
		assert.Zero(t, added)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("rerun leaves the file alone but fixes a drifted mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authorized_keys")
		_, err := syncAuthorizedKeys(path, key)
		require.NoError(t, err)
		require.NoError(t, os.Chmod(path, 0o644))

		added, err := syncAuthorizedKeys(path, key)
		require.NoError(t, err)
		assert.Zero(t, added)

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, key+"\n", string(b))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
	})
}

func TestMergeAuthorizedKeys(t *testing.T) {
	key1 := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIFirst first@laptop"
	key2 := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAISecond second@laptop"

	t.Run("appends to empty file", func(t *testing.T) {
		merged, added := mergeAuthorizedKeys("", key1)
		assert.Equal(t, key1+"\n", merged)
		assert.Equal(t, 1, added)
	})

	t.Run("does not duplicate an existing key", func(t *testing.T) {
		merged, added := mergeAuthorizedKeys(key1+"\n", key1)
		assert.Equal(t, key1+"\n", merged)
		assert.Zero(t, added)
	})

	t.Run("rerun is a fixed point", func(t *testing.T) {
		once, _ := mergeAuthorizedKeys("", key1+"\n"+key2)
		twice, added := mergeAuthorizedKeys(once, key1+"\n"+key2)
		assert.Equal(t, once, twice)
		assert.Zero(t, added)
	})

	t.Run("keeps unrelated existing keys", func(t *testing.T) {
		merged, added := mergeAuthorizedKeys(key2+"\n", key1)
		assert.Equal(t, key2+"\n"+key1+"\n", merged)
		assert.Equal(t, 1, added)
	})

	t.Run("skips comments and blank lines in input", func(t *testing.T) {
		merged, added := mergeAuthorizedKeys("", "# a comment\n\n"+key1+"\n")
		assert.Equal(t, key1+"\n", merged)
		assert.Equal(t, 1, added)
	})

	t.Run("adds missing trailing newline before appending", func(t *testing.T) {
		merged, _ := mergeAuthorizedKeys(key2, key1)
		assert.Equal(t, key2+"\n"+key1+"\n", merged)
	})
}
