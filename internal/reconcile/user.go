package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*User)(nil)

// User creates the admin account and seeds its authorized_keys. Re-running is
// a no-op: the account is created only if `id` fails and keys are appended
// only when missing.
type User struct {
	Name string
	// PublicKey is appended to authorized_keys. When empty, root's
	// authorized_keys are copied over instead.
	PublicKey string
}

func (r *User) Reconcile(ctx context.Context) error {
	if r.Name == "" {
		return fmt.Errorf("user name is required")
	}

	exists, err := r.userExists(ctx)
	if err != nil {
		return fmt.Errorf("check user %q: %w", r.Name, err)
	}
	if !exists {
		log.Infof("creating user %q", r.Name)
		if err := r.execRun(ctx, "useradd", "-m", "-s", "/bin/bash", r.Name); err != nil {
			return fmt.Errorf("create user %q: %w", r.Name, err)
		}
	}
	if err := r.execRun(ctx, "usermod", "-aG", "sudo", r.Name); err != nil {
		return fmt.Errorf("add user %q to sudo group: %w", r.Name, err)
	}

	// Passwordless sudo via a drop-in, same shape cloud-init writes.
	sudoers := fmt.Sprintf("%s ALL=(ALL) NOPASSWD:ALL\n", r.Name)
	sudoersPath := filepath.Join("/etc/sudoers.d", r.Name)
	if changed, err := writeFileIfChanged(sudoersPath, []byte(sudoers), 0o440); err != nil {
		return fmt.Errorf("write sudoers drop-in: %w", err)
	} else if changed {
		log.Infof("wrote sudoers drop-in for %q", r.Name)
	}

	return r.reconcileAuthorizedKeys(ctx)
}

func (r *User) reconcileAuthorizedKeys(ctx context.Context) error {
	keys := r.PublicKey
	if keys == "" {
		b, err := os.ReadFile("/root/.ssh/authorized_keys")
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no public key configured and root has no authorized_keys (lockout)")
			}
			return fmt.Errorf("read root authorized_keys: %w", err)
		}
		keys = string(b)
	}

	sshDir := filepath.Join("/home", r.Name, ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", sshDir, err)
	}

	authorizedKeysPath := filepath.Join(sshDir, "authorized_keys")
	added, err := syncAuthorizedKeys(authorizedKeysPath, keys)
	if err != nil {
		return err
	}
	if added > 0 {
		log.Infof("added %d key(s) to %s", added, authorizedKeysPath)
	}

	owner := fmt.Sprintf("%s:%s", r.Name, r.Name)
	if err := r.execRun(ctx, "chown", "-R", owner, sshDir); err != nil {
		return fmt.Errorf("chown %s: %w", sshDir, err)
	}
	return nil
}

func (r *User) userExists(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "id", "-u", r.Name)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *User) execRun(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// syncAuthorizedKeys merges keys into the file at path and enforces mode
// 0600. The file is created when missing even if nothing was appended (the
// input may hold only comments), so the mode is always enforceable. It
// reports how many keys were appended.
func syncAuthorizedKeys(path, keys string) (int, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	missing := os.IsNotExist(err)

	merged, added := mergeAuthorizedKeys(string(existing), keys)
	if added > 0 || missing {
		if err := os.WriteFile(path, []byte(merged), 0o600); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return 0, fmt.Errorf("chmod %s: %w", path, err)
	}
	return added, nil
}

// mergeAuthorizedKeys appends the keys from add that are not already present
// in existing, preserving existing content as-is. It reports how many keys
// were appended.
func mergeAuthorizedKeys(existing, add string) (string, int) {
	present := make(map[string]struct{})
	for line := range strings.SplitSeq(existing, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			present[line] = struct{}{}
		}
	}

	out := existing
	added := 0
	for line := range strings.SplitSeq(add, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := present[line]; ok {
			continue
		}
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += line + "\n"
		present[line] = struct{}{}
		added++
	}
	return out, added
}
