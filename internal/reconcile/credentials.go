package reconcile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*Credentials)(nil)

// LoadCredentials parses an existing credentials file into KEY=VALUE pairs.
// A missing file yields an empty map: the caller generates fresh secrets and
// the Credentials reconciler persists them.
func LoadCredentials(path string) (map[string]string, error) {
	values := make(map[string]string)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for line := range strings.SplitSeq(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values, nil
}

// Credentials writes the generated-credentials file exactly once. An existing
// file is never touched: secrets are regenerated only when the file is absent,
// and removing it is a manual decision.
type Credentials struct {
	Path   string
	Owner  string
	Values map[string]string
}

func (r *Credentials) Reconcile(ctx context.Context) error {
	if r.Path == "" {
		return fmt.Errorf("credentials path is required")
	}

	if _, err := os.Stat(r.Path); err == nil {
		log.Debugf("credentials file %s already exists, leaving it alone", r.Path)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", r.Path, err)
	}

	if err := os.WriteFile(r.Path, []byte(r.render()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", r.Path, err)
	}
	if r.Owner != "" {
		owner := fmt.Sprintf("%s:%s", r.Owner, r.Owner)
		cmd := exec.CommandContext(ctx, "chown", owner, r.Path)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("chown %s: %w", r.Path, err)
		}
	}
	log.Infof("wrote credentials to %s (delete it once you have stored them)", r.Path)
	return nil
}

func (r *Credentials) render() string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# Generated by the devbox agent. Store these somewhere safe and delete this file.\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, r.Values[k])
	}
	return b.String()
}
