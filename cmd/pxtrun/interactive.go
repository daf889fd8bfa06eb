package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/pxt-runtime/config"
	"github.com/wippyai/pxt-runtime/event"
	"github.com/wippyai/pxt-runtime/runtime"
)

const historySize = 8

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// interactiveModel drives the runtime from the bubbletea update loop, so the
// heap is only touched from one goroutine.
type interactiveModel struct {
	err     error
	cfg     *config.Config
	rt      *runtime.Runtime
	input   textinput.Model
	history []string
	result  int32
}

type bootedMsg struct {
	err    error
	rt     *runtime.Runtime
	result int32
}

type tickMsg time.Time

func newInteractiveModel(cfg *config.Config) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "5:100"
	ti.Prompt = "event> "
	ti.Width = 20
	ti.Focus()
	return &interactiveModel{cfg: cfg, input: ti}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.boot)
}

func (m *interactiveModel) boot() tea.Msg {
	ctx := context.Background()
	rt, err := boot(ctx, m.cfg, zap.NewNop())
	if err != nil {
		return bootedMsg{err: err}
	}
	return bootedMsg{rt: rt, result: rt.Start(ctx)}
}

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "enter":
			m.post(m.input.Value())
			m.input.SetValue("")
			return m, nil
		}

	case bootedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.result = msg.result
		return m, tick()

	case tickMsg:
		if m.rt != nil {
			if _, _, err := m.rt.Step(context.Background()); err != nil {
				m.err = err
			}
		}
		return m, tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) post(s string) {
	if m.rt == nil || strings.TrimSpace(s) == "" {
		return
	}
	e, err := event.Parse(s)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	if err := m.rt.Post(e.Source, e.Value); err != nil {
		m.err = fmt.Errorf("post %s: %w", e, err)
		return
	}
	if _, _, err := m.rt.Step(context.Background()); err != nil {
		m.err = err
	}

	m.history = append(m.history, e.String())
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
}

func (m *interactiveModel) View() string {
	if m.rt == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
		}
		return "Booting image..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("PXT Runtime"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Program.Image)
	b.WriteString("\n\n")

	st := m.rt.Stats()
	row := func(label string, format string, args ...any) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(valueStyle.Render(fmt.Sprintf(format, args...)))
		b.WriteString("\n")
	}
	row("main", "%d", m.result)
	row("heap", "%d live, %d allocated, %d destroyed", st.Heap.Live, st.Heap.Allocated, st.Heap.Destroyed)
	row("soft", "%d", st.Heap.SoftErrors)
	row("handlers", "%d", st.Handlers)
	row("events", "%d posted, %d dropped, %d dispatched", st.Queue.Posted, st.Queue.Dropped, st.Dispatched)
	row("fibers", "%d active, %d finished", st.Fibers, st.Finished)
	row("globals", "%v", m.rt.Globals())
	b.WriteString("\n")

	if len(m.history) > 0 {
		b.WriteString(labelStyle.Render("recent"))
		b.WriteString(" ")
		b.WriteString(strings.Join(m.history, " "))
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("source:value enter post • esc quit"))
	return b.String()
}

func runInteractive(cfg *config.Config) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
