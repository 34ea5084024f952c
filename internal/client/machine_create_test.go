package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserData(t *testing.T) {
	script := userData("dev", 2222)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "useradd -m -s /bin/bash dev\n")
	assert.Contains(t, script, "usermod -aG sudo dev\n")
	assert.Contains(t, script, `echo "dev ALL=(ALL) NOPASSWD:ALL" > /etc/sudoers.d/dev`)
	assert.Contains(t, script, "chmod 700 /home/dev/.ssh\n")
	assert.Contains(t, script, "chmod 600 /home/dev/.ssh/authorized_keys\n")
	assert.Contains(t, script, "sed -i 's/^#Port 22/Port 2222/' /etc/ssh/sshd_config\n")
	assert.Contains(t, script, "sed -i 's/^Port 22/Port 2222/' /etc/ssh/sshd_config\n")
	assert.Contains(t, script, "systemctl restart ssh.socket\n")
}

func TestUserDataUsesTheConfiguredUser(t *testing.T) {
	script := userData("pentester", 2022)

	assert.Contains(t, script, "useradd -m -s /bin/bash pentester\n")
	assert.Contains(t, script, "Port 2022")
	assert.NotContains(t, script, "dev ")
}
