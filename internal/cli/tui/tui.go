package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CMiddleton3/vmrestcli/internal/client"
	"github.com/CMiddleton3/vmrestcli/internal/config"
	"github.com/CMiddleton3/vmrestcli/internal/shared/logging"
	"github.com/CMiddleton3/vmrestcli/internal/supervisor"
)

const serverProcessName = "vmrest.exe"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type action int

const (
	actShowVMs action = iota
	actPowerState
	actPowerOn
	actPowerOff
	actNetworks
	actStartServer
	actStopServer
	actConfigure
)

type menuItem struct {
	label   string
	act     action
	needsID bool
}

var menuItems = []menuItem{
	{label: "Show all VMs", act: actShowVMs},
	{label: "Show power state for VM by ID", act: actPowerState, needsID: true},
	{label: "Power on VM by ID", act: actPowerOn, needsID: true},
	{label: "Power off VM by ID", act: actPowerOff, needsID: true},
	{label: "Show all networks", act: actNetworks},
	{label: "Start management server", act: actStartServer},
	{label: "Stop management server", act: actStopServer},
	{label: "Configure credentials", act: actConfigure},
}

// Run launches the Bubble Tea interactive menu. It owns its own client and
// lifecycle manager built from cfg.
func Run(cfg config.Config) error {
	api, err := client.New(cfg.BaseURL, cfg.Username, cfg.Password, cfg.RequestTimeout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := supervisor.New(ctx, supervisor.Params{
		ExecutablePath: cfg.VMRestPath,
		ProcessName:    serverProcessName,
		BaseURL:        cfg.BaseURL,
		Table:          supervisor.NewOSProcessTable(),
		Launcher:       supervisor.NewExecLauncher(),
		Probe:          supervisor.NewHTTPProbe(),
		ProbeTimeout:   cfg.ProbeTimeout,
		StartupTimeout: cfg.StartupTimeout,
		ShutdownSettle: cfg.ShutdownSettle,
		Logger:         logging.New("supervisor"),
		Out:            new(bytes.Buffer), // messages come back through resultMsg
	})
	if err != nil {
		return err
	}

	m := newModel(ctx, api, handle)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

type viewMode int

const (
	modeMenu viewMode = iota
	modeInput
	modeOutput
	modeBusy
)

type resultMsg struct {
	output string
}

type errMsg struct {
	err error
}

type model struct {
	ctx    context.Context
	api    *client.Client
	handle *supervisor.Handle

	mode    viewMode
	cursor  int
	pending action
	input   textinput.Model
	output  string
	err     error
}

func newModel(ctx context.Context, api *client.Client, handle *supervisor.Handle) model {
	ti := textinput.New()
	ti.Placeholder = "VM ID"
	ti.CharLimit = 64
	return model{ctx: ctx, api: api, handle: handle, input: ti}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case resultMsg:
		m.mode = modeOutput
		m.output = msg.output
		m.err = nil
		return m, nil
	case errMsg:
		m.mode = modeOutput
		m.output = ""
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeInput {
		switch msg.String() {
		case "esc":
			m.mode = modeMenu
			m.input.Reset()
			return m, nil
		case "enter":
			id := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if id == "" {
				m.mode = modeMenu
				return m, nil
			}
			m.mode = modeBusy
			return m, m.runAction(m.pending, id)
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		if m.mode == modeOutput {
			m.mode = modeMenu
		}
		return m, nil
	case "up", "k":
		if m.mode == modeMenu && m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.mode == modeMenu && m.cursor < len(menuItems)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.mode != modeMenu {
			m.mode = modeMenu
			return m, nil
		}
		item := menuItems[m.cursor]
		if item.needsID {
			m.pending = item.act
			m.mode = modeInput
			m.input.Focus()
			return m, textinput.Blink
		}
		m.mode = modeBusy
		return m, m.runAction(item.act, "")
	}
	return m, nil
}

func (m model) View() string {
	title := titleStyle.Render("VMware WorkStation Rest") + "\n\n"

	switch m.mode {
	case modeInput:
		return title + "Enter VM ID (esc to cancel):\n\n" + m.input.View() + "\n"
	case modeBusy:
		return title + "Working...\n"
	case modeOutput:
		body := m.output
		if m.err != nil {
			body = errStyle.Render(fmt.Sprintf("Error: %v", m.err))
		}
		return title + body + "\n\n(enter/esc to return, q to quit)\n"
	}

	var b strings.Builder
	b.WriteString(title)
	for i, item := range menuItems {
		line := fmt.Sprintf("  %d. %s", i+1, item.label)
		if i == m.cursor {
			line = selectedStyle.Render("> " + strings.TrimLeft(line, " "))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n(up/down to move, enter to select, q to quit)\n")
	return b.String()
}

// runAction executes the selected menu entry off the UI loop and returns its
// textual output as a message.
func (m model) runAction(act action, id string) tea.Cmd {
	api := m.api
	handle := m.handle
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()

		var buf bytes.Buffer
		switch act {
		case actShowVMs:
			vms, err := api.ListVMs(ctx)
			if err != nil {
				return errMsg{err: err}
			}
			renderVMs(ctx, &buf, api, vms)
		case actPowerState:
			state, err := api.PowerState(ctx, id)
			if err != nil {
				return errMsg{err: err}
			}
			name, _ := api.VMName(ctx, id)
			fmt.Fprintf(&buf, "Power state of %s VM %s: %s", name, id, state)
		case actPowerOn, actPowerOff:
			verb := "on"
			if act == actPowerOff {
				verb = "off"
			}
			renderPowerChange(ctx, &buf, api, id, verb)
		case actNetworks:
			networks, err := api.ListNetworks(ctx)
			if err != nil {
				return errMsg{err: err}
			}
			renderNetworks(&buf, networks)
		case actStartServer:
			renderLifecycle(&buf, handle.Start(ctx), "started", "start")
		case actStopServer:
			renderLifecycle(&buf, handle.Stop(ctx), "stopped", "stop")
		case actConfigure:
			// Line-oriented prompts do not fit the alt screen; point at
			// the command instead.
			buf.WriteString("Quit the menu and run `vmrestcli configure --credentials` to update the configuration file and server credentials.")
		}
		return resultMsg{output: buf.String()}
	}
}

func renderLifecycle(buf *bytes.Buffer, ok bool, done, verb string) {
	if ok {
		fmt.Fprintf(buf, "Management server %s.", done)
	} else {
		fmt.Fprintf(buf, "Failed to %s management server.", verb)
	}
}

func renderVMs(ctx context.Context, buf *bytes.Buffer, api *client.Client, vms []client.VM) {
	if len(vms) == 0 {
		buf.WriteString("No VMs available.")
		return
	}
	for i, vm := range vms {
		state, err := api.PowerState(ctx, vm.ID)
		if err != nil || state == "" {
			state = "Unknown"
		}
		fmt.Fprintf(buf, "%d. %s\n", i+1, vm.DisplayName())
		fmt.Fprintf(buf, "   Path: %s\n   ID: %s\n   Power State: %s\n", vm.Path, vm.ID, state)
		if state == client.PoweredOn {
			if ip, err := api.IP(ctx, vm.ID); err == nil && ip != "" {
				fmt.Fprintf(buf, "   IP Address: %s\n", ip)
			}
			if nics, err := api.NICs(ctx, vm.ID); err == nil {
				for _, nic := range nics {
					fmt.Fprintf(buf, "   MAC Address (NIC %d): %s\n", nic.Index, nic.MACAddress)
				}
			}
		}
	}
}

func renderPowerChange(ctx context.Context, buf *bytes.Buffer, api *client.Client, id, verb string) {
	name, _ := api.VMName(ctx, id)
	state, err := api.SetPower(ctx, id, verb)
	switch {
	case errors.Is(err, client.ErrAlreadyInState):
		fmt.Fprintf(buf, "VM %s %s is already %s.", name, id, state)
	case err != nil:
		fmt.Fprintf(buf, "Error changing power state for VM %s: %v", id, err)
	default:
		fmt.Fprintf(buf, "VM %s %s is now %s.", name, id, state)
	}
}

func renderNetworks(buf *bytes.Buffer, networks []client.Network) {
	if len(networks) == 0 {
		buf.WriteString("No networks available.")
		return
	}
	for i, net := range networks {
		fmt.Fprintf(buf, "%d. Network Name: %s\n", i+1, net.Name)
		fmt.Fprintf(buf, "   Type: %s  DHCP: %s  Subnet: %s  Mask: %s\n", net.Type, net.DHCP, net.Subnet, net.Mask)
	}
}
