package infra

import (
	"os"
	"os/user"
)

// Privilege describes what the current process may see in the connection table.
type Privilege struct {
	IsRoot   bool
	Username string
}

// DetectPrivilege inspects the effective UID.
// Under sudo, Username reports the invoking user from SUDO_USER.
func DetectPrivilege() *Privilege {
	p := &Privilege{IsRoot: os.Geteuid() == 0}

	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		p.Username = sudoUser
	} else if u, err := user.Current(); err == nil {
		p.Username = u.Username
	}
	return p
}

// Hint returns advice for the user, or "" when nothing is missing.
func (p *Privilege) Hint() string {
	if p.IsRoot {
		return ""
	}
	return "Not running as root: sockets owned by other users may be hidden or lack process info. Re-run with sudo for a full view."
}

// String returns a human-readable description of the mode.
func (p *Privilege) String() string {
	if p.IsRoot {
		return "root (full connection table)"
	}
	return "user " + p.Username + " (own sockets only)"
}
