package reconcile

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*Sshd)(nil)

const sshdDropInPath = "/etc/ssh/sshd_config.d/50-devbox.conf"

// Sshd writes the hardening drop-in for the SSH daemon and restarts it only
// when the rendered config differs from what is on disk.
type Sshd struct {
	Port int
}

func (r *Sshd) Reconcile(ctx context.Context) error {
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("ssh port %d is out of range", r.Port)
	}

	changed, err := writeFileIfChanged(sshdDropInPath, []byte(r.render()), 0o644)
	if err != nil {
		return fmt.Errorf("write sshd drop-in: %w", err)
	}
	if !changed {
		log.Debugf("sshd drop-in already up to date")
		return nil
	}

	if err := r.execRun(ctx, "sshd", "-t"); err != nil {
		return fmt.Errorf("validate sshd config: %w", err)
	}

	// Ubuntu 24.04 socket-activates sshd; the socket carries the port.
	log.Infof("sshd drop-in changed, restarting sshd on port %d", r.Port)
	for _, c := range [][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "restart", "ssh.socket"},
		{"systemctl", "restart", "ssh"},
	} {
		if err := r.execRun(ctx, c[0], c[1:]...); err != nil {
			return fmt.Errorf("restart sshd (%v): %w", c, err)
		}
	}
	return nil
}

func (r *Sshd) render() string {
	return fmt.Sprintf(`# Managed by the devbox agent. Do not edit.
Port %d
PasswordAuthentication no
KbdInteractiveAuthentication no
PubkeyAuthentication yes
PermitRootLogin no
MaxAuthTries 3
X11Forwarding no
AllowTcpForwarding yes
ClientAliveInterval 120
ClientAliveCountMax 3
`, r.Port)
}

func (r *Sshd) execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
