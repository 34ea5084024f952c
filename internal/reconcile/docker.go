package reconcile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*Docker)(nil)

// Docker makes sure the Docker Engine and the Compose v2 plugin are present
// and that the admin user can talk to the daemon.
type Docker struct {
	// User is added to the docker group.
	User string
	// InstallScript is run when the engine is missing (the vendor
	// convenience script, embedded by the caller).
	InstallScript string
}

func (r *Docker) Reconcile(ctx context.Context) error {
	if !r.engineRunning(ctx) {
		if r.InstallScript == "" {
			return fmt.Errorf("docker daemon not reachable and no install script configured")
		}
		log.Infof("docker not found, installing via vendor script")
		install := &RawScript{Name: "install docker", Script: r.InstallScript}
		if err := install.Reconcile(ctx); err != nil {
			return fmt.Errorf("install docker: %w", err)
		}
		if !r.engineRunning(ctx) {
			return fmt.Errorf("docker daemon still not reachable after install")
		}
	}

	// Compose v2 ships as a plugin; everything downstream depends on it.
	out, err := r.execCapture(ctx, "docker", "compose", "version", "--short")
	if err != nil {
		return fmt.Errorf("docker compose v2 plugin not available: %w", err)
	}
	version := strings.TrimSpace(string(out))
	if !strings.HasPrefix(version, "2.") && !strings.HasPrefix(version, "v2.") {
		return fmt.Errorf("docker compose v2 required, got %q", version)
	}
	log.Debugf("docker compose version: %s", version)

	if r.User != "" {
		if err := r.execRun(ctx, "usermod", "-aG", "docker", r.User); err != nil {
			return fmt.Errorf("add user %q to docker group: %w", r.User, err)
		}
	}
	return nil
}

func (r *Docker) engineRunning(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	_, err := r.execCapture(ctx, "docker", "info", "--format", "{{.ServerVersion}}")
	return err == nil
}

func (r *Docker) execCapture(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

func (r *Docker) execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
