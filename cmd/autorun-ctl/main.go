// Command autorun-ctl is the desktop controller UI: a Bubble Tea
// terminal program that connects to the core's cross-process control
// link, mirrors Print lines into a scrollback viewport, and submits
// RunCode requests typed at its prompt.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/autorun-labs/autorun/internal/config"
)

func main() {
	address := flag.String("addr", config.IPCSocketPath(), "control-link socket path")
	flag.Parse()

	cl := newClient("unix", *address)
	m := newModel(cl)

	p := tea.NewProgram(m, tea.WithAltScreen())
	cl.attachProgram(p)

	done := make(chan struct{})
	go cl.run(done)
	defer close(done)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "autorun-ctl:", err)
		os.Exit(1)
	}
}
