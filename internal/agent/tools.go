package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/markusylisiurunen/devbox/internal/config"
	"github.com/markusylisiurunen/devbox/internal/log"
	"github.com/urfave/cli/v3"
)

// tool is a third-party CLI installed for the admin user by running the
// vendor's installer (a curl-piped script or npm package) in a login shell.
// That is a supply-chain trust decision inherent to these tools, not
// something the agent can fix.
type tool struct {
	Name    string
	Binary  string
	Install string
}

var tools = []tool{
	{
		Name:    "claude",
		Binary:  "claude",
		Install: `curl -fsSL https://claude.ai/install.sh | bash`,
	},
	{
		// No standalone installer; ships as an npm package, so node comes
		// from mise first.
		Name:    "codex",
		Binary:  "codex",
		Install: `mise use -g node@lts && mise exec -- npm install -g @openai/codex@latest`,
	},
	{
		Name:    "uv",
		Binary:  "uv",
		Install: `curl -LsSf https://astral.sh/uv/install.sh | sh`,
	},
	{
		Name:    "bun",
		Binary:  "bun",
		Install: `curl -fsSL https://bun.sh/install | bash`,
	},
	{
		Name:    "rustup",
		Binary:  "rustup",
		Install: `curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y`,
	},
}

// selectTools returns the tools picked by the command flags. --all wins;
// otherwise each tool has a flag of its own.
func selectTools(all bool, picked map[string]bool) []tool {
	var out []tool
	for _, t := range tools {
		if all || picked[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

type ToolsAction struct {
	version string
}

func NewToolsAction(version string) *ToolsAction {
	return &ToolsAction{version: version}
}

func (a *ToolsAction) Action(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("status") {
		for _, t := range tools {
			state := "missing"
			if a.installed(ctx, cfg.User, t) {
				state = "installed"
			}
			fmt.Printf("%-10s %s\n", t.Name, state)
		}
		return nil
	}

	picked := make(map[string]bool)
	for _, t := range tools {
		picked[t.Name] = cmd.Bool(t.Name)
	}
	selected := selectTools(cmd.Bool("all"), picked)
	if len(selected) == 0 {
		return fmt.Errorf("nothing selected, pass --all or one of the tool flags")
	}

	update := cmd.Bool("update")
	for _, t := range selected {
		if !update && a.installed(ctx, cfg.User, t) {
			log.Infof("%s already installed, skipping (use --update to reinstall)", t.Name)
			continue
		}
		log.Infof("installing %s for user %q", t.Name, cfg.User)
		if err := a.installAsUser(ctx, cfg.User, t); err != nil {
			return fmt.Errorf("install %s: %w", t.Name, err)
		}
	}
	return nil
}

func (a *ToolsAction) installed(ctx context.Context, user string, t tool) bool {
	check := fmt.Sprintf("command -v %s >/dev/null 2>&1", t.Binary)
	cmd := exec.CommandContext(ctx, "sudo", "-u", user, "bash", "-lc", check)
	return cmd.Run() == nil
}

func (a *ToolsAction) installAsUser(ctx context.Context, user string, t tool) error {
	cmd := exec.CommandContext(ctx, "sudo", "-u", user, "bash", "-lc", t.Install)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
