package app

import (
	"context"
	"io"

	"go.trai.ch/lyric/internal/adapters/detector"
	"go.trai.ch/lyric/internal/adapters/linear"
	"go.trai.ch/lyric/internal/adapters/tui"
	"go.trai.ch/lyric/internal/core/ports"
)

// rendererFor creates the renderer of an output mode. Only ModeTUI takes over
// the terminal. Every other mode prints lines.
func rendererFor(mode detector.OutputMode, stdout, stderr io.Writer) ports.Renderer {
	if mode == detector.ModeTUI {
		return tui.NewRenderer(stderr)
	}
	return linear.ForMode(mode, stdout, stderr)
}

// interruptible derives a context that is cancelled when renderer reports a
// user interrupt. stop releases the watch.
func interruptible(ctx context.Context, renderer ports.Renderer) (context.Context, func()) {
	in, ok := renderer.(ports.Interrupter)
	if !ok {
		return ctx, func() {}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	select {
	case <-in.Interrupted():
		cancel(context.Canceled)
		return ctx, func() {}
	default:
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-in.Interrupted():
			cancel(context.Canceled)
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		cancel(nil)
	}
}
