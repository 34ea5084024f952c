package reconcile

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*Tailscale)(nil)

// Tailscale installs the mesh VPN client and waits for its interface to come
// up. Joining the tailnet (and ACLs) stays a manual step.
type Tailscale struct {
	// InstallScript is run when the tailscale binary is missing.
	InstallScript string
	// WaitAttempts bounds the polling loop for the tunnel interface.
	WaitAttempts int
	// WaitInterval is the sleep between attempts.
	WaitInterval time.Duration
}

func (r *Tailscale) Reconcile(ctx context.Context) error {
	if _, err := exec.LookPath("tailscale"); err != nil {
		if r.InstallScript == "" {
			return fmt.Errorf("tailscale not found and no install script configured")
		}
		log.Infof("tailscale not found, installing via vendor script")
		install := &RawScript{Name: "install tailscale", Script: r.InstallScript}
		if err := install.Reconcile(ctx); err != nil {
			return fmt.Errorf("install tailscale: %w", err)
		}
	}

	if err := r.execRun(ctx, "systemctl", "enable", "--now", "tailscaled"); err != nil {
		return fmt.Errorf("enable tailscaled: %w", err)
	}

	attempts := r.WaitAttempts
	if attempts <= 0 {
		attempts = 30
	}
	interval := r.WaitInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if err := waitForInterface(ctx, "tailscale0", attempts, interval); err != nil {
		// Not fatal: the daemon may still be setting up the tunnel, and
		// the box is usable without it until `tailscale up` is run.
		log.Warnf("%v", err)
	}

	log.Infof("tailscale installed; run `tailscale up` to join your tailnet")
	return nil
}

// waitForInterface polls for a network interface, giving up after the fixed
// number of attempts.
func waitForInterface(ctx context.Context, name string, attempts int, interval time.Duration) error {
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		ifaces, err := net.Interfaces()
		if err != nil {
			return fmt.Errorf("list network interfaces: %w", err)
		}
		for _, iface := range ifaces {
			if iface.Name == name {
				return nil
			}
		}
	}
	return fmt.Errorf("interface %q did not appear after %d attempts", name, attempts)
}

func (r *Tailscale) execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
