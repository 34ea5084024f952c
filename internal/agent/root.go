package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func Execute(ctx context.Context, version string) {
	toolFlags := []cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "install every known tool"},
		&cli.BoolFlag{Name: "status", Usage: "print install status and exit"},
		&cli.BoolFlag{Name: "update", Usage: "reinstall even when already present"},
	}
	for _, t := range tools {
		toolFlags = append(toolFlags, &cli.BoolFlag{
			Name:  t.Name,
			Usage: fmt.Sprintf("install %s", t.Name),
		})
	}

	cmd := &cli.Command{
		Name:    "agent",
		Usage:   "provision this box into a dev/pentest/AI workstation",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "reconcile the machine to the target state",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "answer yes to all confirmation prompts"},
				},
				Action: NewUpAction(version).Action,
			},
			{
				Name:  "maintain",
				Usage: "run maintenance tasks (apt upgrade, docker prune)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "allow-reboot", Usage: "reboot the machine if necessary", Value: false},
				},
				Action: NewMaintainAction(version).Action,
			},
			{
				Name:   "tools",
				Usage:  "install third-party CLI tools for the admin user",
				Flags:  toolFlags,
				Action: NewToolsAction(version).Action,
			},
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
