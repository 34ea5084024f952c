package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bramvdbogaerde/go-scp"
	"github.com/markusylisiurunen/devbox/internal/constant"
	"github.com/markusylisiurunen/devbox/internal/util"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/ssh"
)

func Execute(ctx context.Context, version string) {
	connectionFlags := []cli.Flag{
		&cli.StringFlag{Name: "token", Usage: "Hetzner API token", Required: true},
		&cli.StringFlag{Name: "ssh-private-key", Usage: "SSH private key file path", Required: true},
		&cli.StringFlag{Name: "name", Usage: "Hetzner server name", Required: true},
		&cli.StringFlag{Name: "user", Usage: "admin user on the box", Value: constant.SSH.User},
		&cli.IntFlag{Name: "ssh-port", Usage: "SSH port on the box", Value: constant.SSH.Port},
	}

	cmd := &cli.Command{
		Name:    "devbox",
		Usage:   "provision an Ubuntu VPS into a dev/pentest/AI workstation",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "machine",
				Usage: "manage machines on Hetzner",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a new machine on Hetzner",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "token", Usage: "Hetzner API token", Required: true},
							&cli.StringFlag{Name: "ssh-key-name", Usage: "Hetzner SSH key name", Required: true},
							&cli.StringFlag{Name: "name", Usage: "Hetzner server name"},
							&cli.StringFlag{Name: "size", Usage: "Hetzner server size", Value: "cx32"},
							&cli.StringFlag{Name: "location", Usage: "Hetzner location", Value: "hel1"},
							&cli.StringFlag{Name: "user", Usage: "admin user to bootstrap", Value: constant.SSH.User},
							&cli.IntFlag{Name: "ssh-port", Usage: "SSH port to move the daemon to", Value: constant.SSH.Port},
						},
						Action: NewMachineCreateAction(version).Action,
					},
					{
						Name:   "up",
						Usage:  "provision a machine to the target state",
						Flags:  connectionFlags,
						Action: NewMachineUpAction(version).Action,
					},
					{
						Name:  "maintain",
						Usage: "run maintenance tasks on a machine",
						Flags: append([]cli.Flag{
							&cli.BoolFlag{Name: "allow-reboot", Usage: "reboot the machine if necessary", Value: false},
						}, connectionFlags...),
						Action: NewMachineMaintainAction(version).Action,
					},
				},
			},
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// copyDevAgentBinaryToServer builds the `agent` binary locally and copies it
// to the server, promoting it to root.
func copyDevAgentBinaryToServer(ctx context.Context, sshClient *ssh.Client, user string) error {
	const version = "dev"

	// Create a temporary directory to build the binary in
	tempDir, err := os.MkdirTemp("", "devbox")
	if err != nil {
		return fmt.Errorf("create temp dir for agent build: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Build the `agent` binary
	fmt.Printf("Building agent binary...\n")
	cmd := exec.CommandContext(ctx, "go", "build",
		"-ldflags=-s -w",
		"-trimpath",
		"-o", fmt.Sprintf("%s/agent", tempDir),
		"./cmd/agent",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=0",
		"GOARCH=amd64",
		"GOOS=linux",
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build agent binary: %w", err)
	}

	// Prepare the server directories
	var doer util.Doer
	doer.
		Do(func() error {
			return runCommand(sshClient, fmt.Sprintf("mkdir -p /home/%s/.devbox/%s", user, version))
		}).
		Do(func() error {
			return runCommand(sshClient, fmt.Sprintf("sudo mkdir -p /root/.devbox/%s", version))
		}).
		Do(func() error {
			// Copy the binary to the server using SCP
			binaryPath := fmt.Sprintf("%s/agent", tempDir)
			bin, err := os.Open(binaryPath)
			if err != nil {
				return fmt.Errorf("open built agent binary %q: %w", binaryPath, err)
			}
			defer bin.Close()
			client, err := scp.NewClientBySSH(sshClient)
			if err != nil {
				return fmt.Errorf("create SCP client: %w", err)
			}
			defer client.Close()
			fmt.Printf("Copying agent binary to the server...\n")
			remotePath := fmt.Sprintf("/home/%s/.devbox/%s/agent", user, version)
			if err := client.CopyFromFile(ctx, *bin, remotePath, "0744"); err != nil {
				return fmt.Errorf("copy agent binary to %q: %w", remotePath, err)
			}
			return nil
		}).
		Do(func() error {
			// Promote the binary to root
			cmds := []string{
				fmt.Sprintf("sudo mv /home/%s/.devbox/%s/agent /root/.devbox/%s/agent", user, version, version),
				fmt.Sprintf("sudo rm -rf /home/%s/.devbox/%s", user, version),
				fmt.Sprintf("sudo chown root:root /root/.devbox/%s/agent", version),
			}
			return runCommand(sshClient, strings.Join(cmds, " && "))
		})
	if err := doer.Err(); err != nil {
		return err
	}

	fmt.Printf("Agent binary built and copied successfully\n")
	return nil
}

// copyVersionedAgentBinaryToServer downloads a released `agent` binary on the
// server, guarded by a lock file against concurrent installs.
func copyVersionedAgentBinaryToServer(sshClient *ssh.Client, version string) error {
	downloadURL := fmt.Sprintf(
		"https://github.com/markusylisiurunen/devbox/releases/download/v%s/devbox_agent_linux_amd64.tar.gz",
		version,
	)

	lockFile := "/tmp/devbox-agent-install.lock"
	shellOneLiner := fmt.Sprintf("if [ ! -f /root/.devbox/%s/agent ]; then", version)
	shellOneLiner += fmt.Sprintf(" mkdir -p /root/.devbox/%s;", version)
	shellOneLiner += fmt.Sprintf(" curl -fsSL -o /root/.devbox/%s/devbox.tar.gz %s;", version, downloadURL)
	shellOneLiner += fmt.Sprintf(" tar -xzf /root/.devbox/%s/devbox.tar.gz -C /root/.devbox/%s;", version, version)
	shellOneLiner += fmt.Sprintf(" rm -f /root/.devbox/%s/devbox.tar.gz;", version)
	shellOneLiner += fmt.Sprintf(" mv /root/.devbox/%s/devbox_agent_linux_amd64 /root/.devbox/%s/agent;", version, version)
	shellOneLiner += fmt.Sprintf(" chmod +x /root/.devbox/%s/agent;", version)
	shellOneLiner += fmt.Sprintf(" chown root:root /root/.devbox/%s/agent;", version)
	shellOneLiner += " fi"
	if err := runCommand(sshClient,
		fmt.Sprintf("sudo timeout 10 flock %s sh -c '%s'", lockFile, shellOneLiner),
	); err != nil {
		return fmt.Errorf("install agent binary from %s: %w", downloadURL, err)
	}

	fmt.Printf("Agent binary downloaded and installed successfully\n")
	return nil
}

func runCommand(sshClient *ssh.Client, cmd string) error {
	sess, err := sshClient.NewSession()
	if err != nil {
		return fmt.Errorf("open SSH session: %w", err)
	}
	defer sess.Close()
	sess.Stdout = os.Stdout
	sess.Stderr = os.Stderr
	if err := sess.Run(cmd); err != nil {
		return fmt.Errorf("run command %q: %w", cmd, err)
	}
	return nil
}
