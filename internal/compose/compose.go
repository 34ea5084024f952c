// Package compose renders the Docker Compose stacks the agent manages. The
// templates are embedded; placeholders are substituted at render time so that
// generated secrets never end up in the binary or the repository.
package compose

import (
	_ "embed"
	"io/fs"
	"strings"
)

//go:embed assets/proxy/compose.yml
var proxyComposeFile string

//go:embed assets/proxy/traefik.yml
var proxyTraefikFile string

//go:embed assets/proxy/dashboard-auth.yml
var proxyDashboardAuthFile string

//go:embed assets/ai/compose.yml
var aiComposeFile string

//go:embed assets/ai/env
var aiEnvFile string

//go:embed assets/exegol/compose.yml
var exegolComposeFile string

// File is a single rendered file, with its path relative to the stack
// directory.
type File struct {
	Name    string
	Mode    fs.FileMode
	Content string
}

// Params carries the per-host values substituted into the stack templates.
type Params struct {
	// DashboardUsers is the htpasswd line for the Traefik dashboard.
	DashboardUsers string
	// OpenWebUISecret is the WEBUI_SECRET_KEY value for Open WebUI.
	OpenWebUISecret string
	// ExegolPrivileged switches the pentest container from an explicit
	// capability set to --privileged.
	ExegolPrivileged bool
}

// ProxyStack renders the Traefik reverse proxy stack with its restricted
// docker-socket-proxy sidecar.
func ProxyStack(p Params) []File {
	auth := strings.ReplaceAll(proxyDashboardAuthFile, "{{DASHBOARD_USERS}}", p.DashboardUsers)
	return []File{
		{Name: "compose.yml", Mode: 0o644, Content: proxyComposeFile},
		{Name: "traefik.yml", Mode: 0o644, Content: proxyTraefikFile},
		{Name: "dynamic/dashboard-auth.yml", Mode: 0o644, Content: auth},
	}
}

// AIStack renders the Ollama + Open WebUI stack. The .env file holds the
// Open WebUI secret and must stay at mode 0600.
func AIStack(p Params) []File {
	env := strings.ReplaceAll(aiEnvFile, "{{OPENWEBUI_SECRET}}", p.OpenWebUISecret)
	return []File{
		{Name: "compose.yml", Mode: 0o644, Content: aiComposeFile},
		{Name: ".env", Mode: 0o600, Content: env},
	}
}

// exegolCapsBlock grants only what packet crafting needs instead of
// --privileged.
const exegolCapsBlock = `    cap_drop:
      - ALL
    cap_add:
      - NET_ADMIN
      - NET_RAW`

const exegolPrivilegedBlock = `    privileged: true`

// ExegolStack renders the pentest container stack.
func ExegolStack(p Params) []File {
	security := exegolCapsBlock
	if p.ExegolPrivileged {
		security = exegolPrivilegedBlock
	}
	content := strings.ReplaceAll(exegolComposeFile, "{{EXEGOL_SECURITY}}", security)
	return []File{
		{Name: "compose.yml", Mode: 0o644, Content: content},
	}
}
