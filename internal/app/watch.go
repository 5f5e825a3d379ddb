package app

import (
	"context"
	"fmt"
	"sync"

	"go.trai.ch/lyric/internal/adapters/watcher"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
)

// Watch builds targets, then rebuilds them after every batch of source changes
// until ctx is done. Rebuilds share the cache, so unchanged tasks are cache hits.
// Build failures are reported and do not end the watch. A renderer interrupt does.
func (a *App) Watch(ctx context.Context, targets []domain.TaskID, opts BuildOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	s, err := a.openSession(opts)
	if err != nil {
		return err
	}

	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	if err := w.Start(ctx, s.builder.SourceBase); err != nil {
		_ = w.Stop()
		return zerr.Wrap(err, "failed to start watch mode")
	}
	defer func() {
		_ = w.Stop()
	}()

	var (
		mu      sync.Mutex
		changed []string
	)
	signal := make(chan struct{}, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		mu.Lock()
		changed = append(changed, paths...)
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	go func() {
		for event := range w.Events() {
			debouncer.Add(event.Path)
		}
	}()

	var interrupted <-chan struct{}
	if in, ok := s.renderer.(ports.Interrupter); ok {
		interrupted = in.Interrupted()
	}

	a.rebuild(ctx, s, targets, opts)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-interrupted:
			return nil
		case <-signal:
			mu.Lock()
			paths := changed
			changed = nil
			mu.Unlock()

			s.fs.Invalidate(paths...)
			a.logger.Info(fmt.Sprintf("%d source files changed, rebuilding", len(paths)))
			a.rebuild(ctx, s, targets, opts)
		}
	}
}

func (a *App) rebuild(ctx context.Context, s *session, targets []domain.TaskID, opts BuildOptions) {
	if _, err := a.buildOnce(ctx, s, targets, opts.Params); err != nil && ctx.Err() == nil {
		a.logger.Error(err)
	}
}
