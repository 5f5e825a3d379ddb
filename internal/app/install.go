package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Install writes the artifacts of every completed target below installRoot.
// An artifact at location /a/b is written to installRoot/a/b.
func (a *App) Install(ctx context.Context, result *BuildResult, installRoot string) error {
	if result == nil || result.cache == nil {
		return nil
	}

	ids, err := targetArtifacts(result)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return installArtifact(result.cache, id, installRoot)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(ids) > 0 {
		a.logger.Info(fmt.Sprintf("installed %d artifacts to %s", len(ids), installRoot))
	}
	return nil
}

// targetArtifacts lists the artifacts of the completed targets. When several
// targets produce the same location, the first target wins.
func targetArtifacts(result *BuildResult) ([]domain.ArtifactID, error) {
	var ids []domain.ArtifactID
	seen := make(map[string]struct{})
	for _, t := range result.Targets {
		if t.State.Status != domain.StatusCompleted {
			continue
		}
		traceID := domain.NewTraceID(t.State.Hash, t.Key)
		generation, err := result.cache.LoadTrace(traceID)
		if err != nil {
			return nil, domain.Detail(err, "target", t.Key.String())
		}
		found, err := result.cache.FindArtifacts(generation, t.State.Hash, ports.FindOptions{}, nil)
		if err != nil {
			return nil, domain.Detail(err, "target", t.Key.String())
		}
		for _, id := range found {
			if _, dup := seen[id.Location]; dup {
				continue
			}
			seen[id.Location] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func installArtifact(cache ports.Cache, id domain.ArtifactID, installRoot string) error {
	content, err := cache.LoadContentFollowingLinks(id)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "artifact", id.Location)
	}

	dst := filepath.Join(installRoot, filepath.FromSlash(strings.TrimPrefix(id.Location, "/")))
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "path", dst)
	}
	if err := os.WriteFile(dst, content, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "path", dst)
	}
	return nil
}
