package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	langStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// historyLimit is the number of evaluations kept on screen.
const historyLimit = 8

type interactiveModel struct {
	err        error
	session    *session
	configPath string
	langs      []string
	history    []entry
	input      textinput.Model
	selected   int
	seq        int
	busy       bool
}

type entry struct {
	err    error
	lang   string
	source string
	result string
}

type loadedMsg struct {
	err     error
	session *session
	langs   []string
}

type evalResultMsg struct {
	entry
}

func newInteractiveModel(configPath, lang string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "source"
	ti.Prompt = "› "
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		configPath: configPath,
		langs:      []string{lang},
		input:      ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.loadSession, textinput.Blink)
}

func (m *interactiveModel) loadSession() tea.Msg {
	s, err := newSession(m.configPath, nil)
	if err != nil {
		return loadedMsg{err: err}
	}
	langs, err := s.languages()
	if err != nil {
		s.close()
		return loadedMsg{err: err}
	}
	return loadedMsg{session: s, langs: langs}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.session != nil && !m.busy {
				m.session.close()
				m.session = nil
			}
			return m, tea.Quit

		case "tab":
			if len(m.langs) > 0 {
				m.selected = (m.selected + 1) % len(m.langs)
			}
			return m, nil

		case "enter":
			source := strings.TrimSpace(m.input.Value())
			if source == "" || m.session == nil || m.busy {
				return m, nil
			}
			m.busy = true
			m.seq++
			m.input.SetValue("")
			return m, m.evaluate(m.langs[m.selected], source, m.seq)
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		want := m.langs[m.selected]
		m.langs = msg.langs
		m.selected = max(slices.Index(m.langs, want), 0)

	case evalResultMsg:
		m.busy = false
		m.history = append(m.history, msg.entry)
		if len(m.history) > historyLimit {
			m.history = m.history[len(m.history)-historyLimit:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) evaluate(lang, source string, seq int) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		out, err := s.eval(lang, fmt.Sprintf("<repl:%d>", seq), source)
		return evalResultMsg{entry{lang: lang, source: source, result: out, err: err}}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.session == nil {
		return "Starting isolate..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Polyglot REPL"))
	b.WriteString(" ")
	for i, l := range m.langs {
		if i == m.selected {
			b.WriteString(selectedStyle.Render(" " + l + " "))
		} else {
			b.WriteString(langStyle.Render(" " + l + " "))
		}
	}
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(langStyle.Render(e.lang))
		b.WriteString(" ")
		b.WriteString(sourceStyle.Render(e.source))
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(formatError(e.err)))
		} else {
			b.WriteString(resultStyle.Render(e.result))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	if m.busy {
		b.WriteString(helpStyle.Render("  running..."))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter eval • tab language • esc quit"))
	return b.String()
}

func formatError(err error) string {
	var ge *guestError
	if errors.As(err, &ge) {
		return "exception: " + ge.Error()
	}
	return "error: " + err.Error()
}

func runInteractive(configPath, lang string) error {
	p := tea.NewProgram(newInteractiveModel(configPath, lang), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
