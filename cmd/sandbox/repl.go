package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/js-sandbox/sandbox"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	scriptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	consoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const consoleLines = 8

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Evaluate scripts interactively, one fresh sandbox per script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("repl needs a terminal; use run for scripts")
		}
		ctx := context.Background()
		console := &syncBuffer{}
		h, err := newHost(ctx, cfg, console, console)
		if err != nil {
			return err
		}
		defer h.Close(ctx)

		m := newReplModel(h, console)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		m.closeSandbox()
		return err
	},
}

// syncBuffer collects guest console output written from tea commands.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func (b *syncBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type replState int

const (
	stateInput replState = iota
	stateRunning
	stateResult
)

type replModel struct {
	err     error
	cancel  context.CancelFunc
	host    *host
	sb      *sandbox.Sandbox
	console *syncBuffer
	script  string
	input   textinput.Model
	elapsed time.Duration
	result  int32
	runs    int
	state   replState
}

type execMsg struct {
	err     error
	sb      *sandbox.Sandbox
	elapsed time.Duration
	result  int32
}

func newReplModel(h *host, console *syncBuffer) *replModel {
	ti := textinput.New()
	ti.Placeholder = "2 + 2"
	ti.Prompt = "js> "
	ti.Width = 60
	ti.Focus()
	return &replModel{host: h, console: console, input: ti, state: stateInput}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			switch m.state {
			case stateInput:
				return m, tea.Quit
			case stateResult:
				m.back()
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateInput:
				src := strings.TrimSpace(m.input.Value())
				if src == "" {
					return m, nil
				}
				m.script = src
				m.runs = 0
				m.closeSandbox()
				m.console.reset()
				m.state = stateRunning
				return m, m.compileAndRun(m.callContext(), src)
			case stateResult:
				m.back()
				return m, nil
			}

		case "r":
			if m.state == stateResult && m.sb != nil {
				m.state = stateRunning
				return m, m.exec(m.callContext(), m.sb)
			}
		}

	case execMsg:
		m.sb = msg.sb
		m.err = msg.err
		m.result = msg.result
		m.elapsed = msg.elapsed
		if msg.err == nil {
			m.runs++
		}
		m.state = stateResult
		return m, nil
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *replModel) back() {
	m.state = stateInput
	m.err = nil
	m.input.SetValue("")
}

// callContext returns the context of the next call. Quitting cancels it,
// which stops a running script.
func (m *replModel) callContext() context.Context {
	if m.cancel != nil {
		m.cancel()
	}
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())
	return ctx
}

func (m *replModel) closeSandbox() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.sb != nil {
		m.sb.Close(context.Background())
		m.sb = nil
	}
}

// compileAndRun opens a fresh sandbox, compiles src and executes it once.
// A sandbox whose Init failed is closed, so there is nothing to run again.
func (m *replModel) compileAndRun(ctx context.Context, src string) tea.Cmd {
	return func() tea.Msg {
		sb, err := m.host.open(ctx)
		if err != nil {
			return execMsg{err: err}
		}
		if err := sb.Init(ctx, src); err != nil {
			sb.Close(context.Background())
			return execMsg{err: err}
		}
		return m.exec(ctx, sb)()
	}
}

func (m *replModel) exec(ctx context.Context, sb *sandbox.Sandbox) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		n, err := sb.Exec(ctx)
		return execMsg{err: err, sb: sb, result: n, elapsed: time.Since(start)}
	}
}

func (m *replModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("JS Sandbox"))
	b.WriteString(" ")
	b.WriteString(m.host.limits.String())
	b.WriteString("\n\n")

	switch m.state {
	case stateInput:
		b.WriteString("Enter a script that evaluates to a 32-bit integer:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc quit"))

	case stateRunning:
		b.WriteString(scriptStyle.Render(m.script))
		b.WriteString("\n\nRunning...")

	case stateResult:
		b.WriteString(scriptStyle.Render(m.script))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("= %d", m.result)))
			b.WriteString(helpStyle.Render(fmt.Sprintf("  (%v, run %d)", m.elapsed, m.runs)))
		}
		if lines := m.console.tail(consoleLines); len(lines) > 0 {
			b.WriteString("\n\n")
			b.WriteString(consoleStyle.Render(strings.Join(lines, "\n")))
		}
		b.WriteString("\n\n")
		help := "enter new script • esc back • ctrl+c quit"
		if m.sb != nil && m.sb.Err() == nil {
			help = "r run again • " + help
		}
		b.WriteString(helpStyle.Render(help))
	}

	return b.String()
}
