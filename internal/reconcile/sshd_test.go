package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSshdRender(t *testing.T) {
	content := (&Sshd{Port: 2222}).render()

	assert.Contains(t, content, "Port 2222\n")
	assert.Contains(t, content, "PasswordAuthentication no\n")
	assert.Contains(t, content, "PermitRootLogin no\n")
	assert.Contains(t, content, "PubkeyAuthentication yes\n")
	assert.Contains(t, content, "MaxAuthTries 3\n")
}

func TestSshdRejectsBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		err := (&Sshd{Port: port}).Reconcile(context.Background())
		require.Error(t, err)
	}
}
