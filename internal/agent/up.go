package agent

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/markusylisiurunen/devbox/internal/compose"
	"github.com/markusylisiurunen/devbox/internal/config"
	"github.com/markusylisiurunen/devbox/internal/reconcile"
	"github.com/markusylisiurunen/devbox/internal/secret"
	"github.com/urfave/cli/v3"
)

//go:embed script/install_docker.sh
var installDockerSh string

//go:embed script/install_tailscale.sh
var installTailscaleSh string

//go:embed script/setup_fail2ban.sh
var setupFail2banSh string

//go:embed script/install_mise.sh
var installMiseSh string

//go:embed script/setup_shell.sh
var setupShellSh string

type UpAction struct {
	version string
}

func NewUpAction(version string) *UpAction {
	return &UpAction{version: version}
}

func (a *UpAction) Action(ctx context.Context, cmd *cli.Command) error {
	// Hard gates before any mutation
	if os.Geteuid() != 0 {
		return fmt.Errorf("agent up must run as root")
	}
	if _, err := exec.LookPath("apt-get"); err != nil {
		return fmt.Errorf("apt-get not found, this agent only supports Ubuntu/Debian: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	credsPath := filepath.Join("/home", cfg.User, ".devbox-credentials")
	creds, err := reconcile.LoadCredentials(credsPath)
	if err != nil {
		return err
	}
	if err := ensureSecrets(cfg, creds); err != nil {
		return err
	}

	confirm := func(prompt string) bool {
		if cmd.Bool("yes") {
			return true
		}
		return askConfirmation(prompt)
	}

	// Execute all the steps in order
	for _, step := range a.steps(cfg, creds, credsPath, confirm) {
		if err := step.Reconcile(ctx); err != nil {
			return err
		}
	}

	return nil
}

// steps builds the ordered reconciliation sequence. Credentials are persisted
// right after the user exists so that a failure in any later step does not
// lose freshly generated secrets and force a regeneration on rerun.
func (a *UpAction) steps(cfg *config.Config, creds map[string]string, credsPath string, confirm func(string) bool) []reconcile.Reconciler {
	stackParams := compose.Params{
		DashboardUsers:   creds["TRAEFIK_DASHBOARD_HTPASSWD"],
		OpenWebUISecret:  creds["OPENWEBUI_SECRET"],
		ExegolPrivileged: cfg.ExegolPrivileged,
	}

	steps := []reconcile.Reconciler{}
	// Refresh the system and install the base packages
	steps = append(steps, &reconcile.AptGet{
		Upgrade: true,
		Packages: []string{
			"ca-certificates",
			"curl",
			"fail2ban",
			"git",
			"jq",
			"tmux",
			"tree",
			"ufw",
			"unzip",
			"zsh",
		},
	})
	// Create the admin user and seed its authorized_keys
	steps = append(steps, &reconcile.User{
		Name:      cfg.User,
		PublicKey: cfg.SSHPublicKey,
	})
	// Persist the generated credentials (written once, mode 0600)
	steps = append(steps, &reconcile.Credentials{
		Path:   credsPath,
		Owner:  cfg.User,
		Values: creds,
	})
	// Harden the SSH daemon (custom port, key auth only)
	steps = append(steps, &reconcile.Sshd{
		Port: cfg.SSHPort,
	})
	// Firewall: default deny incoming, allow only the SSH port
	steps = append(steps, &reconcile.Ufw{
		AllowedTcpPorts: []int{cfg.SSHPort},
	})
	// Protect the SSH port against brute-force attempts
	steps = append(steps, &reconcile.RawScript{
		Name:   "setup fail2ban",
		Script: renderScript(setupFail2banSh, cfg),
	})
	// Docker Engine + Compose v2 are required for everything below
	steps = append(steps, &reconcile.Docker{
		User:          cfg.User,
		InstallScript: installDockerSh,
	})
	// Mesh VPN; joining the tailnet stays a manual step
	steps = append(steps, &reconcile.Tailscale{
		InstallScript: installTailscaleSh,
	})
	// Version manager for the admin user
	steps = append(steps, &reconcile.RawScript{
		Name:   "install mise",
		Script: renderScript(installMiseSh, cfg),
	})
	// Terminal tools and shell configuration
	steps = append(steps, &reconcile.RawScript{
		Name:   "setup shell",
		Script: renderScript(setupShellSh, cfg),
	})
	// Reverse proxy stack (Traefik + restricted socket proxy)
	steps = append(steps, &reconcile.Stack{
		Name:    "proxy",
		Dir:     filepath.Join(cfg.Root, "proxy"),
		Files:   compose.ProxyStack(stackParams),
		Network: "devbox",
		Confirm: confirm,
	})
	// LLM inference stack (Ollama + Open WebUI)
	steps = append(steps, &reconcile.Stack{
		Name:    "ai",
		Dir:     filepath.Join(cfg.Root, "ai"),
		Files:   compose.AIStack(stackParams),
		Network: "devbox",
		Confirm: confirm,
	})
	// Pentest container; a failed pull is retried on first use
	steps = append(steps, &reconcile.Stack{
		Name:         "exegol",
		Dir:          filepath.Join(cfg.Root, "exegol"),
		Files:        compose.ExegolStack(stackParams),
		Confirm:      confirm,
		PullWarnOnly: true,
	})

	return steps
}

// ensureSecrets fills in any secret missing from the credentials file. Values
// already present are reused so that reruns render identical stack configs.
func ensureSecrets(cfg *config.Config, creds map[string]string) error {
	if creds["TRAEFIK_DASHBOARD_USER"] == "" {
		creds["TRAEFIK_DASHBOARD_USER"] = "admin"
	}
	if creds["TRAEFIK_DASHBOARD_PASSWORD"] == "" {
		password, err := secret.NewHex(16)
		if err != nil {
			return fmt.Errorf("generate dashboard password: %w", err)
		}
		creds["TRAEFIK_DASHBOARD_PASSWORD"] = password
	}
	if creds["TRAEFIK_DASHBOARD_HTPASSWD"] == "" {
		entry, err := secret.HtpasswdEntry(
			creds["TRAEFIK_DASHBOARD_USER"],
			creds["TRAEFIK_DASHBOARD_PASSWORD"],
		)
		if err != nil {
			return fmt.Errorf("generate dashboard htpasswd: %w", err)
		}
		creds["TRAEFIK_DASHBOARD_HTPASSWD"] = entry
	}
	if creds["OPENWEBUI_SECRET"] == "" {
		if cfg.OpenWebUISecret != "" {
			creds["OPENWEBUI_SECRET"] = cfg.OpenWebUISecret
		} else {
			value, err := secret.NewHex(32)
			if err != nil {
				return fmt.Errorf("generate open webui secret: %w", err)
			}
			creds["OPENWEBUI_SECRET"] = value
		}
	}
	creds["SSH_PORT"] = strconv.Itoa(cfg.SSHPort)
	return nil
}

// renderScript substitutes the config placeholders in an embedded script.
func renderScript(script string, cfg *config.Config) string {
	r := strings.NewReplacer(
		"{{USER}}", cfg.User,
		"{{SSH_PORT}}", strconv.Itoa(cfg.SSHPort),
	)
	return r.Replace(script)
}

func askConfirmation(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
