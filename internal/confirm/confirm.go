// Package confirm renders the yes/no prompt guarding destructive commands.
package confirm

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorText    = lipgloss.Color("#F3F4F6")
	colorBorder  = lipgloss.Color("#4B5563")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDanger).
			MarginBottom(1)

	activeButtonStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorPrimary).
				Padding(0, 2).
				Bold(true)

	inactiveButtonStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)
)

// Dialog is a yes/no confirmation model. No is selected initially.
type Dialog struct {
	Title       string
	Message     string
	YesSelected bool
	confirmed   bool
	done        bool
}

// NewDialog creates a dialog with No preselected.
func NewDialog(title, message string) Dialog {
	return Dialog{Title: title, Message: message}
}

// Init implements tea.Model.
func (d Dialog) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (d Dialog) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}
	switch key.String() {
	case "left", "h":
		d.YesSelected = true
	case "right", "l":
		d.YesSelected = false
	case "tab":
		d.YesSelected = !d.YesSelected
	case "y", "Y":
		d.confirmed, d.done = true, true
		return d, tea.Quit
	case "n", "N", "esc", "q", "ctrl+c":
		d.confirmed, d.done = false, true
		return d, tea.Quit
	case "enter":
		d.confirmed, d.done = d.YesSelected, true
		return d, tea.Quit
	}
	return d, nil
}

// View implements tea.Model.
func (d Dialog) View() string {
	if d.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yes := inactiveButtonStyle.Render("Yes")
	no := inactiveButtonStyle.Render("No")
	if d.YesSelected {
		yes = activeButtonStyle.Render("Yes")
	} else {
		no = activeButtonStyle.Render("No")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yes, "  ", no))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("←/→ navigate • enter confirm • y/n answer • esc cancel"))
	return boxStyle.Render(b.String())
}

// Confirmed reports whether the operator answered yes.
func (d Dialog) Confirmed() bool { return d.confirmed }

// Ask runs the dialog on in/out and returns the answer.
func Ask(in io.Reader, out io.Writer, title, message string) (bool, error) {
	p := tea.NewProgram(NewDialog(title, message), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("run confirmation: %w", err)
	}
	d, ok := final.(Dialog)
	if !ok {
		return false, nil
	}
	return d.Confirmed(), nil
}
