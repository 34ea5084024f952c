package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHex(t *testing.T) {
	first, err := NewHex(32)
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]+$", first)

	second, err := NewHex(32)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestNewHexRejectsNonPositiveLength(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := NewHex(n)
		require.Error(t, err)
	}
}

func TestHtpasswdEntry(t *testing.T) {
	entry, err := HtpasswdEntry("admin", "hunter2")
	require.NoError(t, err)

	user, hash, found := strings.Cut(entry, ":")
	require.True(t, found)
	assert.Equal(t, "admin", user)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))
}

func TestHtpasswdEntryRequiresUserAndPassword(t *testing.T) {
	_, err := HtpasswdEntry("", "hunter2")
	require.Error(t, err)
	_, err = HtpasswdEntry("admin", "")
	require.Error(t, err)
}
