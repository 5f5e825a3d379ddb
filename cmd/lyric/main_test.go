package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lyric/internal/adapters/cas"
	"go.trai.ch/lyric/internal/adapters/toolchain"
	"go.trai.ch/lyric/internal/app"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
	"go.trai.ch/lyric/internal/core/ports/mocks"
	"go.trai.ch/lyric/internal/engine/registry"
	"go.uber.org/mock/gomock"
)

func newComponents(ctrl *gomock.Controller, loader *mocks.MockConfigLoader, log *mocks.MockLogger) ComponentProvider {
	reg := registry.New()
	reg.Seal()
	application := app.New(loader, cas.NewOpener(), toolchain.New(), reg, log).
		WithOutput(io.Discard, io.Discard)

	return func(_ context.Context) (*app.Components, error) {
		return &app.Components{
			App:          application,
			Logger:       log,
			ConfigLoader: loader,
		}, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := newComponents(ctrl, mocks.NewMockConfigLoader(ctrl), mocks.NewMockLogger(ctrl))

	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), provider)
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, error) {
		return nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run returns 1 and logs when the command fails.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	log := mocks.NewMockLogger(ctrl)

	loader.EXPECT().Load(gomock.Any()).Return(nil, errors.New("load failed"))
	log.EXPECT().Error(gomock.Any()).Times(1)

	exitCode := run(context.Background(), []string{"build", "compile_module:/app"}, new(bytes.Buffer),
		newComponents(ctrl, loader, log))
	assert.Equal(t, 1, exitCode)
}

// TestRun_BuildFailure verifies that a failed target makes the build exit with 1.
func TestRun_BuildFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	log := mocks.NewMockLogger(ctrl)

	root := t.TempDir()
	cfg := domain.DefaultBuilderConfig(root)
	cfg.SourceBase = filepath.Join(root, domain.DefaultSourceBase)
	cfg.InstallRoot = filepath.Join(root, domain.DefaultInstallRoot)
	cfg.Jobs = 2

	loader.EXPECT().Load(gomock.Any()).Return(&ports.Configuration{Builder: cfg, Settings: domain.NewTaskSettings()}, nil)
	log.EXPECT().Error(gomock.Any()).Times(1)
	log.EXPECT().Info(gomock.Any()).AnyTimes()

	exitCode := run(context.Background(), []string{"build", "parse_module:/missing", "--output", "quiet"},
		new(bytes.Buffer), newComponents(ctrl, loader, log))
	assert.Equal(t, 1, exitCode)
	_, err := os.Stat(cfg.InstallRoot)
	assert.True(t, os.IsNotExist(err))
}
