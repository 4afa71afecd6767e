package prompt

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type model struct {
	label     string
	input     textinput.Model
	theme     theme
	submitted bool
	cancelled bool
}

func newModel(label string, secret bool) *model {
	in := textinput.New()
	in.Prompt = "› "
	in.Focus()
	in.CharLimit = 256
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}

	return &model{
		label: label,
		input: in,
		theme: defaultTheme(),
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.input.Value() == "" {
				return m, nil
			}
			m.submitted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.label.Render(m.label),
		m.theme.input.Render(m.input.View()),
		m.theme.hint.Render("enter to submit • esc to cancel"),
	) + "\n"
}

type theme struct {
	label lipgloss.Style
	input lipgloss.Style
	hint  lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		label: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("25")),
		input: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("223")),
		hint: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("244")),
	}
}
