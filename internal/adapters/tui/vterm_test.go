package tui_test

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/lyric/internal/adapters/tui"
)

func filled(lines int) *tui.Vterm {
	v := tui.NewVterm()
	v.SetWidth(40)
	v.SetHeight(3)
	for i := range lines {
		_, _ = fmt.Fprintf(v, "line %d\n", i)
	}
	return v
}

func TestVterm_FollowsOutput(t *testing.T) {
	t.Parallel()

	v := filled(10)
	view := v.View()
	assert.Contains(t, view, "line 9")
	assert.NotContains(t, view, "line 5")
	assert.Len(t, strings.Split(view, "\n"), 3)
}

func TestVterm_Scrolling(t *testing.T) {
	t.Parallel()

	v := filled(10)
	v.Update(tea.KeyMsg{Type: tea.KeyHome})
	assert.Equal(t, 0, v.Offset)
	assert.Contains(t, v.View(), "line 0")

	_, _ = fmt.Fprintln(v, "line 10")
	assert.Equal(t, 0, v.Offset, "a scrolled view stays put")

	v.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 3, v.Offset)

	v.Update(tea.KeyMsg{Type: tea.KeyEnd})
	assert.Contains(t, v.View(), "line 10")

	v.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, v.UsedHeight()-v.Height, v.Offset, "offset is clamped")
}

func TestVterm_SizeFloor(t *testing.T) {
	t.Parallel()

	v := tui.NewVterm()
	v.SetWidth(0)
	v.SetHeight(-5)
	assert.Equal(t, 1, v.Width)
	assert.Equal(t, 1, v.Height)
	assert.Zero(t, v.Offset)
}
