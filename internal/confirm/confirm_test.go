package confirm

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, d Dialog, keys ...tea.KeyMsg) Dialog {
	t.Helper()
	for _, k := range keys {
		m, _ := d.Update(k)
		var ok bool
		d, ok = m.(Dialog)
		require.True(t, ok)
	}
	return d
}

func TestDialogDefaultsToNo(t *testing.T) {
	t.Parallel()
	d := press(t, NewDialog("Drop tables", "All data will be lost."), tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, d.Confirmed())
	require.Empty(t, d.View())
}

func TestDialogSelectYesThenConfirm(t *testing.T) {
	t.Parallel()
	d := press(t, NewDialog("Drop tables", "All data will be lost."),
		tea.KeyMsg{Type: tea.KeyLeft},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	require.True(t, d.Confirmed())
}

func TestDialogNavigatesBackToNo(t *testing.T) {
	t.Parallel()
	d := press(t, NewDialog("t", "m"),
		tea.KeyMsg{Type: tea.KeyLeft},
		tea.KeyMsg{Type: tea.KeyRight},
	)
	require.False(t, d.YesSelected)
	d = press(t, d, tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, d.Confirmed())
}

func TestDialogShortcuts(t *testing.T) {
	t.Parallel()
	yes := press(t, NewDialog("t", "m"), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	require.True(t, yes.Confirmed())

	esc := press(t, NewDialog("t", "m"), tea.KeyMsg{Type: tea.KeyLeft}, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, esc.Confirmed())
}

func TestDialogViewShowsPrompt(t *testing.T) {
	t.Parallel()
	view := NewDialog("Drop tables", "All data will be lost.").View()
	require.Contains(t, view, "Drop tables")
	require.Contains(t, view, "All data will be lost.")
	require.Contains(t, view, "Yes")
	require.Contains(t, view, "No")
}
