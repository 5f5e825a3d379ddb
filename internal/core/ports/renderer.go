package ports

import (
	"time"
)

// Renderer is the abstraction for build progress output.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// OnBuildStart is called when a build generation starts computing its targets.
	OnBuildStart(generation string, targets []string)

	// OnTaskStart is called when a task span starts.
	// spanID: unique identifier for this task
	// name: human-readable task name
	OnTaskStart(spanID, name string, startTime time.Time)

	// OnTaskLog is called when a task emits output.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a task span ends.
	// cached is true if the task was satisfied from an existing trace.
	// err is nil if the task succeeded.
	OnTaskComplete(spanID string, endTime time.Time, cached bool, err error)

	// OnBuildComplete is called with the totals of a finished build.
	OnBuildComplete(summary BuildSummary)

	// Flush writes any buffered output.
	Flush() error
}

// BuildSummary is the outcome of one build generation.
type BuildSummary struct {
	Generation string
	Completed  int
	Failed     int
	// Cancelled counts tasks a shutdown left unfinished.
	Cancelled  int
	Created    int
	Cached     int
	Elapsed    time.Duration
}

// Interrupter is implemented by renderers that read the keyboard and let the
// user abort a build.
type Interrupter interface {
	// Interrupted is closed once the user asked to stop.
	Interrupted() <-chan struct{}
}
