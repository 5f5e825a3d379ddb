// Package linear provides a synchronous, line-buffered renderer for build progress.
package linear

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with chronological, prefixed lines.
// Task output goes to stdout, progress to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output
	quiet  bool

	mu    sync.Mutex
	tasks map[string]*taskState
}

type taskState struct {
	name      string
	startTime time.Time
	partial   bytes.Buffer
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithQuiet suppresses task start and success lines.
func WithQuiet() Option {
	return func(r *Renderer) { r.quiet = true }
}

// WithProfile sets the color profile used for progress output.
func WithProfile(profile termenv.Profile) Option {
	return func(r *Renderer) {
		r.output = termenv.NewOutput(r.stderr, termenv.WithProfile(profile), termenv.WithTTY(true))
	}
}

// NewRenderer creates a new Renderer. Nil writers select stdout and stderr.
func NewRenderer(stdout, stderr io.Writer, opts ...Option) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	r := &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: termenv.NewOutput(stderr, termenv.WithProfile(termenv.ANSI)),
		tasks:  make(map[string]*taskState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnBuildStart prints the targets of the build.
func (r *Renderer) OnBuildStart(generation string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quiet {
		return
	}
	header := r.output.String(fmt.Sprintf("Building %d target(s)", len(targets))).Bold().String()
	_, _ = fmt.Fprintf(r.stderr, "%s %s %s\n", header, strings.Join(targets, " "),
		r.output.String("("+generation+")").Faint().String())
}

// OnTaskStart prints a task start message.
func (r *Renderer) OnTaskStart(spanID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[spanID] = &taskState{name: name, startTime: startTime}
	if r.quiet {
		return
	}
	prefix := r.output.String(fmt.Sprintf("[%s]", name)).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", prefix)
}

// OnTaskLog buffers data and prints complete lines with the task prefix.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	task.partial.Write(data)
	for {
		idx := bytes.IndexByte(task.partial.Bytes(), '\n')
		if idx < 0 {
			return
		}
		line := task.partial.Next(idx + 1)
		r.printLineLocked(task.name, line)
	}
}

// OnTaskComplete flushes remaining output and prints the task outcome.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, cached bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}
	defer delete(r.tasks, spanID)

	if task.partial.Len() > 0 {
		r.printLineLocked(task.name, task.partial.Bytes())
	}

	prefix := fmt.Sprintf("[%s]", task.name)
	duration := endTime.Sub(task.startTime)

	switch {
	case err != nil:
		symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", prefix, symbol, duration, err)
	case r.quiet:
	case cached:
		symbol := r.output.String(style.Cached).Foreground(termenv.ANSICyan).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Cached\n", prefix, symbol)
	default:
		symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n", prefix, symbol, duration)
	}
}

// OnBuildComplete prints the build summary.
func (r *Renderer) OnBuildComplete(summary ports.BuildSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
	if summary.Failed > 0 {
		symbol = r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
	}
	cancelled := ""
	if summary.Cancelled > 0 {
		cancelled = fmt.Sprintf(", %d cancelled", summary.Cancelled)
	}
	_, _ = fmt.Fprintf(r.stderr, "%s %d completed, %d failed%s (%d created, %d cached) in %v\n",
		symbol, summary.Completed, summary.Failed, cancelled, summary.Created, summary.Cached, summary.Elapsed)
}

// Flush prints the partial output of tasks that never completed.
func (r *Renderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range r.tasks {
		if task.partial.Len() > 0 {
			r.printLineLocked(task.name, task.partial.Bytes())
			task.partial.Reset()
		}
	}
	return nil
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(taskName string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", taskName, line)
}
