package reconcile

import (
	"context"
	"os"
	"os/exec"

	"github.com/markusylisiurunen/devbox/internal/log"
)

var _ Reconciler = (*RawScript)(nil)

type RawScript struct {
	Name   string
	Script string
}

func (r *RawScript) Reconcile(ctx context.Context) error {
	if r.Name != "" {
		log.Infof("running script: %s", r.Name)
	}
	cmd := exec.CommandContext(ctx, "bash", "-euxo", "pipefail", "-c", r.Script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
