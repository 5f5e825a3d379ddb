package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lyric/internal/adapters/detector"
)

func TestDetectEnvironment_CI(t *testing.T) {
	for _, ci := range []string{"true", "1"} {
		t.Run("CI="+ci, func(t *testing.T) {
			t.Setenv("CI", ci)
			assert.Equal(t, detector.ModePlain, detector.DetectEnvironment())
		})
	}
}

func TestResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flag string
		auto detector.OutputMode
		want detector.OutputMode
	}{
		{flag: "", auto: detector.ModeTerminal, want: detector.ModeTerminal},
		{flag: "auto", auto: detector.ModePlain, want: detector.ModePlain},
		{flag: "terminal", auto: detector.ModePlain, want: detector.ModeTerminal},
		{flag: "tui", auto: detector.ModePlain, want: detector.ModeTUI},
		{flag: "auto", auto: detector.ModeTUI, want: detector.ModeTUI},
		{flag: "plain", auto: detector.ModeTerminal, want: detector.ModePlain},
		{flag: "ci", auto: detector.ModeTerminal, want: detector.ModePlain},
		{flag: "quiet", auto: detector.ModeTerminal, want: detector.ModeQuiet},
		{flag: "bogus", auto: detector.ModePlain, want: detector.ModePlain},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detector.ResolveMode(tt.auto, tt.flag))
		})
	}
}
