package main

import (
	"context"
	"fmt"
	"strings"

	"domaincheck/internal/checker"
	"domaincheck/internal/model"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	infoToast        = toastStyle.BorderForeground(lipgloss.Color("#3B82F6"))
	destructiveToast = toastStyle.BorderForeground(lipgloss.Color("#FF6B6B"))
)

// changedMsg signals that the controller or its alert store changed. source
// tells which listener to re-arm.
type changedMsg struct {
	source <-chan struct{}
}

type settledMsg struct {
	err error
}

type formModel struct {
	ctx            context.Context
	ctrl           *checker.Controller
	input          textinput.Model
	spinner        spinner.Model
	state          model.ViewState
	cancelInFlight bool
	autoSubmit     bool

	stateCh <-chan struct{}
	alertCh <-chan struct{}
	unsubs  []func()
}

func newFormModel(ctx context.Context, ctrl *checker.Controller, domain string, cancelInFlight bool) *formModel {
	ti := textinput.New()
	ti.Placeholder = "example.com"
	ti.CharLimit = 253
	ti.Width = 40
	ti.Prompt = "Domain: "
	ti.SetValue(domain)
	ti.Focus()

	m := &formModel{
		ctx:            ctx,
		ctrl:           ctrl,
		input:          ti,
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:          ctrl.State(),
		cancelInFlight: cancelInFlight,
		autoSubmit:     strings.TrimSpace(domain) != "",
	}

	stateCh, unsubState := ctrl.Subscribe()
	alertCh, unsubAlert := ctrl.Alerts().Subscribe()
	m.stateCh, m.alertCh = stateCh, alertCh
	m.unsubs = []func(){unsubState, unsubAlert}
	return m
}

func listen(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{source: ch}
	}
}

func (m *formModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, listen(m.stateCh), listen(m.alertCh)}
	if m.autoSubmit {
		cmds = append(cmds, m.submit())
	}
	return tea.Batch(cmds...)
}

// submit runs the check off the update loop; the controller serialises state.
func (m *formModel) submit() tea.Cmd {
	domain := m.input.Value()
	ctx := m.ctx
	ctrl := m.ctrl
	return func() tea.Msg {
		return settledMsg{err: ctrl.Submit(ctx, domain)}
	}
}

func (m *formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			for _, unsub := range m.unsubs {
				unsub()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.state.Loading && !m.cancelInFlight {
				return m, nil
			}
			return m, m.submit()
		}

	case changedMsg:
		m.state = m.ctrl.State()
		return m, listen(msg.source)

	case settledMsg:
		m.state = m.ctrl.State()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *formModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Domain Checker"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.state.Loading {
		b.WriteString(m.spinner.View() + " Checking...")
	} else {
		b.WriteString(helpStyle.Render("[enter] Check Domain"))
	}
	b.WriteString("\n")

	if m.state.Result != nil {
		b.WriteString("\n")
		for _, row := range m.state.Result.Rows() {
			fmt.Fprintf(&b, "%s %s\n", keyStyle.Render(row.Key+":"), row.Value)
		}
	}

	if a := m.state.Alert; a != nil {
		style := infoToast
		if a.Severity == model.SeverityDestructive {
			style = destructiveToast
		}
		b.WriteString("\n")
		b.WriteString(style.Render(lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().Bold(true).Render(a.Title), a.Description)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("esc / ctrl+c to quit"))
	return b.String()
}
