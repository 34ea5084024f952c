// Package config loads the agent configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
)

var userNameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

// Config holds everything the agent needs to reconcile a box. All values come
// from DEVBOX_* environment variables; the agent itself takes no flags beyond
// command switches.
type Config struct {
	// User is the admin account created on the box.
	User string
	// SSHPort is the port the SSH daemon is moved to.
	SSHPort int
	// SSHPublicKey is appended to the admin user's authorized_keys. When
	// empty, root's existing authorized_keys are copied over instead.
	SSHPublicKey string
	// OpenWebUISecret seeds WEBUI_SECRET_KEY for the AI stack. Generated
	// when empty.
	OpenWebUISecret string
	// ExegolPrivileged opts the pentest container into --privileged instead
	// of the default explicit capability set.
	ExegolPrivileged bool
	// Root is the directory the compose stacks are rendered under.
	Root string
}

// Load reads configuration from DEVBOX_* environment variables and returns a
// validated Config. Optional variables with defaults: DEVBOX_USER (dev),
// DEVBOX_SSH_PORT (2222), DEVBOX_ROOT (/opt/devbox).
func Load() (*Config, error) {
	user := "dev"
	if v, ok := os.LookupEnv("DEVBOX_USER"); ok {
		user = v
	}
	if !userNameRegexp.MatchString(user) {
		return nil, fmt.Errorf("DEVBOX_USER %q is not a valid user name", user)
	}

	sshPort := 2222
	if v, ok := os.LookupEnv("DEVBOX_SSH_PORT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("DEVBOX_SSH_PORT has invalid value %q: %w", v, err)
		}
		sshPort = parsed
	}
	if sshPort < 1 || sshPort > 65535 {
		return nil, fmt.Errorf("DEVBOX_SSH_PORT %d is out of range", sshPort)
	}

	root := "/opt/devbox"
	if v, ok := os.LookupEnv("DEVBOX_ROOT"); ok {
		root = v
	}

	return &Config{
		User:             user,
		SSHPort:          sshPort,
		SSHPublicKey:     os.Getenv("DEVBOX_SSH_PUBLIC_KEY"),
		OpenWebUISecret:  os.Getenv("DEVBOX_OPENWEBUI_SECRET"),
		ExegolPrivileged: os.Getenv("DEVBOX_EXEGOL_PRIVILEGED") == "1",
		Root:             root,
	}, nil
}
