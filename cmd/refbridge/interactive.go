package main

import (
	"bytes"
	"fmt"
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

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	boundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	tableStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

const historySize = 8

type interactiveModel struct {
	env      *env
	scenario string
	input    textinput.Model
	history  []evalEntry
	rows     []heapRow
}

type evalEntry struct {
	err    error
	src    string
	output string
	result string
}

type evalMsg evalEntry

func newInteractiveModel(e *env, scenario string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = `release("a"); gc()`
	ti.Prompt = "js> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		env:      e,
		scenario: scenario,
		input:    ti,
		rows:     heapRows(e),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.evaluate(src)
		}

	case evalMsg:
		m.history = append(m.history, evalEntry(msg))
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
		m.rows = heapRows(m.env)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) evaluate(src string) tea.Cmd {
	return func() tea.Msg {
		var out bytes.Buffer
		m.env.realm.WithOutput(&out)
		defer m.env.realm.WithOutput(nil)

		entry := evalEntry{src: src}
		v, err := m.env.realm.Run(src)
		entry.err = err
		if err == nil && v != nil {
			entry.result = v.String()
		}
		entry.output = strings.TrimRight(out.String(), "\n")
		return evalMsg(entry)
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("refbridge inspector"))
	if m.scenario != "" {
		b.WriteString(" ")
		b.WriteString(m.scenario)
	}
	b.WriteString("\n\n")

	b.WriteString(tableStyle.Render(m.renderTable()))
	b.WriteString("\n\n")

	for _, h := range m.history {
		b.WriteString(helpStyle.Render("js> " + h.src))
		b.WriteString("\n")
		if h.output != "" {
			b.WriteString(h.output)
			b.WriteString("\n")
		}
		if h.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", h.err)))
			b.WriteString("\n")
		} else if h.result != "" {
			b.WriteString(resultStyle.Render(h.result))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("gc() • release(name) • bound() • live() • enter run • esc quit"))
	return b.String()
}

func (m *interactiveModel) renderTable() string {
	if len(m.rows) == 0 {
		return helpStyle.Render("heap is empty")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %6s %6s %4s  %s", "resource", "id", "strong", "weak", "binding")))
	for _, r := range m.rows {
		b.WriteString("\n")
		line := fmt.Sprintf("%s %6d %6d %4d  ", nameStyle.Render(fmt.Sprintf("%-10s", r.name)), r.id, r.strong, r.weak)
		b.WriteString(line)
		if r.binding != "" {
			b.WriteString(boundStyle.Render(r.binding))
		}
	}
	return b.String()
}

func runInteractive(e *env, scenario string) error {
	p := tea.NewProgram(newInteractiveModel(e, scenario), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
