package compose

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type composeDoc struct {
	Services map[string]struct {
		Image       string   `yaml:"image"`
		Ports       []string `yaml:"ports"`
		Environment []string `yaml:"environment"`
		Labels      []string `yaml:"labels"`
		CapDrop     []string `yaml:"cap_drop"`
		CapAdd      []string `yaml:"cap_add"`
		Privileged  bool     `yaml:"privileged"`
		NetworkMode string   `yaml:"network_mode"`
		EnvFile     []string `yaml:"env_file"`
	} `yaml:"services"`
	Networks map[string]struct {
		Internal bool `yaml:"internal"`
		External bool `yaml:"external"`
	} `yaml:"networks"`
}

func findFile(t *testing.T, files []File, name string) File {
	t.Helper()
	for _, f := range files {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("file %q not rendered", name)
	return File{}
}

func parseCompose(t *testing.T, content string) composeDoc {
	t.Helper()
	var doc composeDoc
	require.NoError(t, yaml.Unmarshal([]byte(content), &doc))
	return doc
}

func TestProxyStack(t *testing.T) {
	files := ProxyStack(Params{DashboardUsers: "admin:$2a$10$abcdefg"})

	doc := parseCompose(t, findFile(t, files, "compose.yml").Content)

	// The socket proxy must expose only container listing, and never POST.
	proxy, ok := doc.Services["socket-proxy"]
	require.True(t, ok)
	assert.Contains(t, proxy.Environment, "CONTAINERS=1")
	assert.Contains(t, proxy.Environment, "POST=0")
	assert.Contains(t, proxy.CapDrop, "ALL")
	assert.Empty(t, proxy.Ports)

	// Traefik binds to loopback only; the mesh VPN is the way in.
	traefik, ok := doc.Services["traefik"]
	require.True(t, ok)
	for _, port := range traefik.Ports {
		assert.True(t, strings.HasPrefix(port, "127.0.0.1:"), "port %q is not loopback-bound", port)
	}
	assert.Contains(t, traefik.CapDrop, "ALL")

	assert.True(t, doc.Networks["socket"].Internal)
	assert.True(t, doc.Networks["devbox"].External)

	// Static config points the docker provider at the socket proxy.
	var traefikCfg struct {
		Providers struct {
			Docker struct {
				Endpoint         string `yaml:"endpoint"`
				ExposedByDefault bool   `yaml:"exposedByDefault"`
			} `yaml:"docker"`
			File struct {
				Directory string `yaml:"directory"`
			} `yaml:"file"`
		} `yaml:"providers"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(findFile(t, files, "traefik.yml").Content), &traefikCfg))
	assert.Equal(t, "tcp://socket-proxy:2375", traefikCfg.Providers.Docker.Endpoint)
	assert.False(t, traefikCfg.Providers.Docker.ExposedByDefault)
	assert.Equal(t, "/etc/traefik/dynamic", traefikCfg.Providers.File.Directory)

	// Dashboard auth carries the substituted htpasswd line.
	auth := findFile(t, files, "dynamic/dashboard-auth.yml")
	assert.Contains(t, auth.Content, "admin:$2a$10$abcdefg")
	assert.NotContains(t, auth.Content, "{{DASHBOARD_USERS}}")
	assert.Contains(t, auth.Content, "Host(`traefik.internal`)")
}

func TestAIStack(t *testing.T) {
	files := AIStack(Params{OpenWebUISecret: "deadbeef"})

	env := findFile(t, files, ".env")
	assert.Equal(t, fs.FileMode(0o600), env.Mode)
	assert.Contains(t, env.Content, "WEBUI_SECRET_KEY=deadbeef")
	assert.NotContains(t, env.Content, "{{OPENWEBUI_SECRET}}")

	doc := parseCompose(t, findFile(t, files, "compose.yml").Content)

	ollama, ok := doc.Services["ollama"]
	require.True(t, ok)
	for _, port := range ollama.Ports {
		assert.True(t, strings.HasPrefix(port, "127.0.0.1:"), "port %q is not loopback-bound", port)
	}
	assert.Contains(t, ollama.Labels, "traefik.http.routers.ollama.rule=Host(`ollama.internal`)")

	webui, ok := doc.Services["open-webui"]
	require.True(t, ok)
	assert.Contains(t, webui.EnvFile, ".env")
	assert.Contains(t, webui.Labels, "traefik.http.routers.ai.rule=Host(`ai.internal`)")
	assert.Empty(t, webui.Ports, "open-webui is reachable only through the proxy")
}

func TestExegolStackDefaultsToCapabilities(t *testing.T) {
	files := ExegolStack(Params{})

	doc := parseCompose(t, findFile(t, files, "compose.yml").Content)
	exegol, ok := doc.Services["exegol"]
	require.True(t, ok)
	assert.False(t, exegol.Privileged)
	assert.Equal(t, []string{"ALL"}, exegol.CapDrop)
	assert.ElementsMatch(t, []string{"NET_ADMIN", "NET_RAW"}, exegol.CapAdd)
}

func TestExegolStackPrivilegedEscapeHatch(t *testing.T) {
	files := ExegolStack(Params{ExegolPrivileged: true})

	doc := parseCompose(t, findFile(t, files, "compose.yml").Content)
	exegol, ok := doc.Services["exegol"]
	require.True(t, ok)
	assert.True(t, exegol.Privileged)
	assert.Empty(t, exegol.CapAdd)
}
