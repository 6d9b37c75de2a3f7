package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/autorun-labs/autorun/internal/realm"
)

var (
	statusConnectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusDisconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	headerStyle             = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

// model is the controller's Bubble Tea model: a scrollback viewport of
// Print lines received from the core, a text input for RunCode, and a
// connection-status indicator, composed from bubbles' viewport and
// textinput components.
type model struct {
	cl *client

	viewport viewport.Model
	input    textinput.Model
	lines    []string

	connected bool
	realm     realm.Realm

	width, height int
}

func newModel(cl *client) model {
	ti := textinput.New()
	ti.Placeholder = "Autorun.print('hi')"
	ti.Focus()
	ti.CharLimit = 4096

	vp := viewport.New(80, 20)

	return model{cl: cl, viewport: vp, input: ti, realm: realm.Client}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - inputAreaHeight
		m.input.Width = msg.Width - 2
		return m, nil

	case connectedMsg:
		m.connected = true
		return m, nil

	case disconnectedMsg:
		m.connected = false
		return m, nil

	case lineMsg:
		m.lines = append(m.lines, msg.text)
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if m.realm == realm.Client {
				m.realm = realm.Menu
			} else {
				m.realm = realm.Client
			}
			return m, nil
		case tea.KeyEnter:
			source := m.input.Value()
			if strings.TrimSpace(source) != "" {
				m.cl.RunCode(m.realm, source)
				m.lines = append(m.lines, "> "+source)
				m.viewport.SetContent(strings.Join(m.lines, "\n"))
				m.viewport.GotoBottom()
			}
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

const inputAreaHeight = 3

func (m model) View() string {
	status := statusDisconnectedStyle.Render("disconnected")
	if m.connected {
		status = statusConnectedStyle.Render("connected")
	}
	header := headerStyle.Render(fmt.Sprintf("autorun-ctl  [%s]  realm=%s", status, m.realm))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
	)
}
