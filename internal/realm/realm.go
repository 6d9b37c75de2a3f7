// Package realm defines the two host scripting VMs and the process-wide
// registry mapping each to its sandbox environment handle.
package realm

import "fmt"

// Realm tags one of the host's two isolated scripting VMs.
type Realm int

const (
	// Menu is the host's menu-realm VM.
	Menu Realm = iota
	// Client is the host's client (in-game) realm VM.
	Client
)

// String implements fmt.Stringer.
func (r Realm) String() string {
	switch r {
	case Menu:
		return "menu"
	case Client:
		return "client"
	default:
		return fmt.Sprintf("realm(%d)", int(r))
	}
}
