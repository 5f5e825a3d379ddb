package tui_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/tui"
	"go.trai.ch/lyric/internal/core/ports"
)

func newRenderer(stderr io.Writer, input string) *tui.Renderer {
	return tui.NewRenderer(stderr,
		tea.WithInput(strings.NewReader(input)),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
		tea.WithoutRenderer(),
	)
}

func TestRenderer_ReportsAfterExit(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	r := newRenderer(&stderr, "")

	r.OnBuildStart("gen-1", []string{"compile_module:/a"})
	r.OnTaskStart("s1", "parse_module:/a", t0)
	r.OnTaskLog("s1", []byte("parsed /a\n"))
	r.OnTaskComplete("s1", t0.Add(time.Second), false, nil)
	r.OnTaskStart("s2", "compile_module:/a", t0)
	r.OnTaskComplete("s2", t0.Add(time.Second), false, errors.New("boom"))
	r.OnBuildComplete(ports.BuildSummary{Completed: 1, Failed: 1, Created: 1, Elapsed: 2 * time.Second})
	require.NoError(t, r.Flush())

	out := stderr.String()
	assert.Contains(t, out, "[compile_module:/a]")
	assert.Contains(t, out, "Failed after 1s: boom")
	assert.NotContains(t, out, "parse_module:/a", "successful tasks are not repeated")
	assert.Contains(t, out, "1 completed, 1 failed (1 created, 0 cached) in 2s")

	select {
	case <-r.Interrupted():
		t.Fatal("no interrupt was requested")
	default:
	}
}

func TestRenderer_ProgramPerGeneration(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	r := newRenderer(&stderr, "")

	r.OnBuildStart("gen-1", nil)
	r.OnBuildComplete(ports.BuildSummary{Completed: 1})
	r.OnBuildStart("gen-2", nil)
	r.OnBuildComplete(ports.BuildSummary{Completed: 2})
	require.NoError(t, r.Flush())
	require.NoError(t, r.Flush(), "flushing twice is harmless")

	out := stderr.String()
	assert.Contains(t, out, "1 completed")
	assert.Contains(t, out, "2 completed")
}

func TestRenderer_EventsWithoutProgramAreDropped(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	r := newRenderer(&stderr, "")
	r.OnTaskStart("s1", "x", t0)
	r.OnTaskLog("s1", []byte("x\n"))
	r.OnTaskComplete("s1", t0, false, nil)
	require.NoError(t, r.Flush())
	assert.Empty(t, stderr.String())
}

func TestRenderer_CtrlCInterrupts(t *testing.T) {
	t.Parallel()

	r := newRenderer(io.Discard, "\x03")
	r.OnBuildStart("gen-1", nil)

	select {
	case <-r.Interrupted():
	case <-time.After(5 * time.Second):
		t.Fatal("ctrl+c did not interrupt")
	}
	require.NoError(t, r.Flush())
}
