package tui

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/lyric/internal/adapters/linear"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/ui/output"
	"go.trai.ch/zerr"
)

var (
	_ ports.Renderer    = (*Renderer)(nil)
	_ ports.Interrupter = (*Renderer)(nil)
)

// Renderer implements ports.Renderer with a full-screen bubbletea program per
// build generation. When the program exits, failures and the build summary are
// printed on stderr so they outlive the alternate screen.
type Renderer struct {
	stderr io.Writer
	opts   []tea.ProgramOption

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
	final   *Model
	runErr  error

	interruptOnce sync.Once
	interrupted   chan struct{}
}

// NewRenderer creates a Renderer drawing on stderr. opts are passed to every
// program it starts. A nil stderr selects os.Stderr.
func NewRenderer(stderr io.Writer, opts ...tea.ProgramOption) *Renderer {
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Renderer{
		stderr:      stderr,
		opts:        opts,
		interrupted: make(chan struct{}),
	}
}

// Interrupted is closed once the user pressed ctrl+c.
func (r *Renderer) Interrupted() <-chan struct{} {
	return r.interrupted
}

// OnBuildStart starts the program of a new generation. A program still running
// from an earlier generation is stopped first.
func (r *Renderer) OnBuildStart(generation string, targets []string) {
	_ = r.stop()

	model := NewModel(generation, targets)
	opts := append([]tea.ProgramOption{tea.WithOutput(r.stderr), tea.WithAltScreen()}, r.opts...)
	program := tea.NewProgram(model, opts...)
	done := make(chan struct{})

	r.mu.Lock()
	r.program = program
	r.done = done
	r.final = model
	r.runErr = nil
	r.mu.Unlock()

	go func() {
		defer close(done)
		final, err := program.Run()
		m, _ := final.(*Model)

		r.mu.Lock()
		if m != nil {
			r.final = m
		}
		r.runErr = err
		r.mu.Unlock()

		if m != nil && m.Interrupted {
			r.interruptOnce.Do(func() { close(r.interrupted) })
		}
	}()
}

// OnTaskStart adds a task row.
func (r *Renderer) OnTaskStart(spanID, name string, startTime time.Time) {
	r.send(MsgTaskStart{SpanID: spanID, Name: name, StartTime: startTime})
}

// OnTaskLog writes task output to the task's terminal.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.send(MsgTaskLog{SpanID: spanID, Data: append([]byte(nil), data...)})
}

// OnTaskComplete marks a task row done or failed.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, cached bool, err error) {
	r.send(MsgTaskComplete{SpanID: spanID, EndTime: endTime, Cached: cached, Err: err})
}

// OnBuildComplete shows the totals in the task list header.
func (r *Renderer) OnBuildComplete(summary ports.BuildSummary) {
	r.send(MsgBuildComplete{Summary: summary})
}

// Flush stops the program and prints the failed tasks and the build summary.
func (r *Renderer) Flush() error {
	return r.stop()
}

func (r *Renderer) send(msg tea.Msg) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

// stop quits the running program, waits for it and reports its final state.
func (r *Renderer) stop() error {
	r.mu.Lock()
	program, done := r.program, r.done
	r.program = nil
	r.mu.Unlock()
	if program == nil {
		return nil
	}

	program.Quit()
	<-done

	r.mu.Lock()
	final, err := r.final, r.runErr
	r.mu.Unlock()

	r.report(final)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return zerr.Wrap(err, "terminal interface failed")
	}
	return nil
}

// report replays the failures and the summary of m through a quiet linear renderer.
func (r *Renderer) report(m *Model) {
	if m == nil {
		return
	}
	out := linear.NewRenderer(io.Discard, r.stderr, linear.WithQuiet(), linear.WithProfile(output.ColorProfile()))
	for _, node := range m.Tasks {
		if node.Status != StatusError {
			continue
		}
		out.OnTaskStart(node.SpanID, node.Name, node.StartTime)
		out.OnTaskComplete(node.SpanID, node.EndTime, node.Cached, node.Err)
	}
	if m.Summary != nil {
		out.OnBuildComplete(*m.Summary)
	}
}
