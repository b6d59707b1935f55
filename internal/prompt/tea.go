package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// TeaPrompter renders prompts as small inline bubbletea programs.
type TeaPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p *TeaPrompter) RequestPath(ctx context.Context, reason string) (string, error) {
	final, err := p.run(ctx, newPathModel(reason))
	if err != nil {
		return "", err
	}
	m, ok := final.(pathModel)
	if !ok || m.cancelled {
		return "", ErrCancelled
	}
	return strings.TrimSpace(m.value), nil
}

func (p *TeaPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	final, err := p.run(ctx, confirmModel{question: question})
	if err != nil {
		return false, err
	}
	m, ok := final.(confirmModel)
	if !ok || m.cancelled {
		return false, ErrCancelled
	}
	return m.answer, nil
}

func (p *TeaPrompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("run prompt: %w", err)
	}
	return final, nil
}

type pathModel struct {
	reason    string
	input     textinput.Model
	value     string
	cancelled bool
}

func newPathModel(reason string) pathModel {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "/path/to/Logic World"
	input.CharLimit = 1024
	input.Width = 72
	input.Focus()
	return pathModel{reason: reason, input: input}
}

func (m pathModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m pathModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.value = m.input.Value()
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m pathModel) View() string {
	lines := []string{titleStyle.Render("Game install path")}
	if strings.TrimSpace(m.reason) != "" {
		lines = append(lines, errorStyle.Render(m.reason))
	}
	lines = append(lines, m.input.View(), mutedStyle.Render("enter to accept, esc to cancel"), "")
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

type confirmModel struct {
	question  string
	answer    bool
	cancelled bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.answer = false
		return m, tea.Quit
	case tea.KeyRunes:
		switch strings.ToLower(string(key.Runes)) {
		case "y":
			m.answer = true
			return m, tea.Quit
		case "n":
			m.answer = false
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	return fmt.Sprintf("%s %s\n", titleStyle.Render(m.question), mutedStyle.Render("[y/N]"))
}
