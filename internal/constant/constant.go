// Package constant holds the defaults shared by the client and the agent.
package constant

var SSH = struct {
	// Port is the hardened SSH port the agent moves the daemon to and the
	// client connects to.
	Port int
	// User is the default admin account on a provisioned box.
	User string
}{
	Port: 2222,
	User: "dev",
}
