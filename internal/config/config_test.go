package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every DEVBOX_ env var that Load() reads.
var allConfigKeys = []string{
	"DEVBOX_USER",
	"DEVBOX_SSH_PORT",
	"DEVBOX_SSH_PUBLIC_KEY",
	"DEVBOX_OPENWEBUI_SECRET",
	"DEVBOX_EXEGOL_PRIVILEGED",
	"DEVBOX_ROOT",
}

// isolateConfigEnv saves and unsets all DEVBOX_ env vars so tests don't
// inherit values from the host environment.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.User)
	assert.Equal(t, 2222, cfg.SSHPort)
	assert.Equal(t, "/opt/devbox", cfg.Root)
	assert.Empty(t, cfg.SSHPublicKey)
	assert.Empty(t, cfg.OpenWebUISecret)
	assert.False(t, cfg.ExegolPrivileged)
}

func TestLoadOverrides(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("DEVBOX_USER", "pentester")
	t.Setenv("DEVBOX_SSH_PORT", "2022")
	t.Setenv("DEVBOX_SSH_PUBLIC_KEY", "ssh-ed25519 AAAA test@laptop")
	t.Setenv("DEVBOX_OPENWEBUI_SECRET", "s3cret")
	t.Setenv("DEVBOX_EXEGOL_PRIVILEGED", "1")
	t.Setenv("DEVBOX_ROOT", "/srv/devbox")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "pentester", cfg.User)
	assert.Equal(t, 2022, cfg.SSHPort)
	assert.Equal(t, "ssh-ed25519 AAAA test@laptop", cfg.SSHPublicKey)
	assert.Equal(t, "s3cret", cfg.OpenWebUISecret)
	assert.True(t, cfg.ExegolPrivileged)
	assert.Equal(t, "/srv/devbox", cfg.Root)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric port", key: "DEVBOX_SSH_PORT", value: "twenty-two"},
		{name: "port out of range", key: "DEVBOX_SSH_PORT", value: "70000"},
		{name: "port zero", key: "DEVBOX_SSH_PORT", value: "0"},
		{name: "user with spaces", key: "DEVBOX_USER", value: "dev user"},
		{name: "user starting with digit", key: "DEVBOX_USER", value: "1dev"},
		{name: "user with capitals", key: "DEVBOX_USER", value: "Dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
