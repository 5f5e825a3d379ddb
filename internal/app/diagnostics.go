package app

import (
	"context"

	"go.trai.ch/lyric/internal/core/domain"
)

// TargetDiagnostics is the stored diagnostics of one build target.
type TargetDiagnostics struct {
	Key    domain.TaskKey
	Status domain.TaskStatus
	Hash   string
	Spans  domain.SpanSet
	// Err is the target's failure, or why no diagnostics could be loaded.
	Err error
}

// Diagnostics computes targets and returns the diagnostics stored for each.
// Unchanged targets are cache hits whose diagnostics come from the run that
// produced them. Failed targets report their diagnostics too.
func (a *App) Diagnostics(ctx context.Context, targets []domain.TaskID, opts BuildOptions) ([]TargetDiagnostics, error) {
	result, err := a.ComputeTargets(ctx, targets, opts)
	if err != nil {
		return nil, err
	}

	out := make([]TargetDiagnostics, 0, len(result.Targets))
	for _, t := range result.Targets {
		d := TargetDiagnostics{
			Key:    t.Key,
			Status: t.State.Status,
			Hash:   t.State.Hash,
			Err:    t.Err,
		}
		if t.State.Hash != "" {
			spans, err := result.cache.LoadDiagnostics(domain.NewTraceID(t.State.Hash, t.Key))
			if err != nil && d.Err == nil {
				d.Err = err
			}
			d.Spans = spans
		}
		out = append(out, d)
	}
	return out, nil
}
