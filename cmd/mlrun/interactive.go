package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const shownEntries = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// entry is one evaluated command line.
type entry struct {
	line   string
	output string
	failed bool
}

// replModel reads "name arg..." lines and evaluates them against a session.
type replModel struct {
	session *session
	names   []string
	input   textinput.Model
	entries []entry
	recall  int
	busy    bool
}

type evalMsg struct {
	line   string
	output string
	err    error
}

func newReplModel(s *session) *replModel {
	in := textinput.New()
	in.Prompt = promptStyle.Render("mlrun> ")
	in.Placeholder = "apply1 fn:succ 41"
	in.Width = 60
	in.Focus()

	funcs := s.funcs()
	names := make([]string, len(funcs))
	for i, f := range funcs {
		names[i] = f.name
	}
	return &replModel{session: s, names: names, input: in}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			return m, m.eval(line)
		case "up":
			m.step(-1)
			return m, nil
		case "down":
			m.step(1)
			return m, nil
		case "tab":
			m.complete()
			return m, nil
		}

	case evalMsg:
		m.busy = false
		e := entry{line: msg.line, output: msg.output}
		if msg.err != nil {
			e.output, e.failed = msg.err.Error(), true
		}
		m.entries = append(m.entries, e)
		m.recall = len(m.entries)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval runs line outside the update loop.
func (m *replModel) eval(line string) tea.Cmd {
	return func() tea.Msg {
		fields, err := splitArgs(line)
		if err != nil {
			return evalMsg{line: line, err: err}
		}
		if fields[0] == "list" && len(fields) == 1 {
			var b strings.Builder
			printFuncs(&b, m.session.funcs())
			return evalMsg{line: line, output: strings.TrimRight(b.String(), "\n")}
		}
		out, err := m.session.call(fields[0], fields[1:])
		return evalMsg{line: line, output: out, err: err}
	}
}

// step moves through previously entered lines.
func (m *replModel) step(delta int) {
	next := m.recall + delta
	if next < 0 || next > len(m.entries) {
		return
	}
	m.recall = next
	if next == len(m.entries) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.entries[next].line)
	}
	m.input.CursorEnd()
}

// complete extends the external name being typed when the prefix is unique.
func (m *replModel) complete() {
	prefix := m.input.Value()
	if strings.ContainsAny(prefix, " \t") {
		return
	}
	match := ""
	for _, name := range m.names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if match != "" {
			return
		}
		match = name
	}
	if match != "" {
		m.input.SetValue(match + " ")
		m.input.CursorEnd()
	}
}

func (m *replModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mlrun"))
	fmt.Fprintf(&b, " %d externals\n\n", len(m.names))

	shown := m.entries
	if len(shown) > shownEntries {
		shown = shown[len(shown)-shownEntries:]
	}
	for _, e := range shown {
		b.WriteString(helpStyle.Render("> " + e.line))
		b.WriteString("\n")
		if e.failed {
			b.WriteString(errorStyle.Render(e.output))
		} else {
			b.WriteString(resultStyle.Render(e.output))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.busy {
		b.WriteString(helpStyle.Render("running..."))
	} else {
		b.WriteString(helpStyle.Render("enter run • tab complete • ↑/↓ history • list • esc quit"))
	}
	return b.String()
}

func runInteractive(s *session) error {
	_, err := tea.NewProgram(newReplModel(s)).Run()
	return err
}
