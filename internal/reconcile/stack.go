package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/markusylisiurunen/devbox/internal/compose"
	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*Stack)(nil)

// Stack renders a Docker Compose stack to a directory and brings it up. The
// stack is only (re)started when the rendered files changed or the stack is
// not running; restarting a running stack asks for confirmation first.
type Stack struct {
	Name  string
	Dir   string
	Files []compose.File
	// Network is an external docker network to create if missing.
	Network string
	// Confirm guards restarting an already-running stack after a config
	// change. Nil means always confirmed.
	Confirm func(prompt string) bool
	// PullWarnOnly downgrades an image pull failure from fatal to a
	// warning (the pull is retried on first use).
	PullWarnOnly bool
}

func (r *Stack) Reconcile(ctx context.Context) error {
	if r.Name == "" || r.Dir == "" || len(r.Files) == 0 {
		return fmt.Errorf("stack name, directory and files are required")
	}

	if r.Network != "" {
		script := fmt.Sprintf(
			"if ! docker network inspect %s >/dev/null 2>&1; then docker network create %s; fi",
			r.Network, r.Network,
		)
		if err := r.execRun(ctx, "", "bash", "-lc", script); err != nil {
			return fmt.Errorf("ensure docker network %q: %w", r.Network, err)
		}
	}

	// Diff against disk before writing anything: a declined restart must
	// leave the old files in place so the next run sees the diff again and
	// re-asks instead of silently treating the stack as up to date.
	changed, err := r.filesChanged()
	if err != nil {
		return fmt.Errorf("diff stack %s files: %w", r.Name, err)
	}

	running, err := r.isRunning(ctx)
	if err != nil {
		return fmt.Errorf("check stack %s state: %w", r.Name, err)
	}
	if running && !changed {
		// Content is current, but correct any drifted file modes.
		if err := r.render(); err != nil {
			return err
		}
		log.Debugf("stack %s already up to date and running", r.Name)
		return nil
	}
	if running && changed && r.Confirm != nil {
		prompt := fmt.Sprintf("stack %s is running and its config changed; restart it?", r.Name)
		if !r.Confirm(prompt) {
			log.Warnf("stack %s: config change declined, keeping the old files and the running stack", r.Name)
			return nil
		}
	}

	if err := r.render(); err != nil {
		return err
	}
	if err := r.execRun(ctx, r.Dir, "docker", "compose", "pull"); err != nil {
		if !r.PullWarnOnly {
			return fmt.Errorf("pull images for stack %s: %w", r.Name, err)
		}
		log.Warnf("stack %s: image pull failed, will retry on first use: %v", r.Name, err)
	}
	if err := r.execRun(ctx, r.Dir, "docker", "compose", "up", "-d", "--remove-orphans"); err != nil {
		return fmt.Errorf("start stack %s: %w", r.Name, err)
	}
	return nil
}

// filesChanged reports whether rendering would modify any file content on
// disk. It never writes.
func (r *Stack) filesChanged() (bool, error) {
	for _, f := range r.Files {
		path := filepath.Join(r.Dir, f.Name)
		existing, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !bytes.Equal(existing, []byte(f.Content)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Stack) render() error {
	for _, f := range r.Files {
		path := filepath.Join(r.Dir, f.Name)
		changed, err := writeFileIfChanged(path, []byte(f.Content), f.Mode)
		if err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}
		if changed {
			log.Infof("stack %s: wrote %s", r.Name, path)
		}
	}
	return nil
}

func (r *Stack) isRunning(ctx context.Context) (bool, error) {
	if _, err := os.Stat(filepath.Join(r.Dir, "compose.yml")); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	cmd := exec.CommandContext(ctx, "docker", "compose", "ps", "-q")
	cmd.Dir = r.Dir
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

func (r *Stack) execRun(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
