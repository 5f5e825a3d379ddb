package linear_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/detector"
	"go.trai.ch/lyric/internal/adapters/linear"
	"go.trai.ch/lyric/internal/core/ports"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newRenderer(opts ...linear.Option) (*linear.Renderer, *bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	opts = append([]linear.Option{linear.WithProfile(termenv.Ascii)}, opts...)
	return linear.NewRenderer(stdout, stderr, opts...), stdout, stderr
}

func TestRenderer_Build(t *testing.T) {
	t.Parallel()

	r, stdout, stderr := newRenderer()

	r.OnBuildStart("gen-1", []string{"compile:app"})
	r.OnTaskStart("s1", "parse_module:/app/main", t0)
	r.OnTaskStart("s2", "parse_module:/app/util", t0)
	r.OnTaskLog("s1", []byte("reading src/app/main.ly\npar"))
	r.OnTaskLog("s1", []byte("tial"))
	r.OnTaskComplete("s1", t0.Add(1500*time.Millisecond), false, nil)
	r.OnTaskComplete("s2", t0.Add(time.Second), true, nil)
	r.OnTaskStart("s3", "compile_module:/app/main", t0)
	r.OnTaskComplete("s3", t0.Add(2*time.Second), false, errors.New("syntax error"))
	r.OnBuildComplete(ports.BuildSummary{
		Generation: "gen-1",
		Completed:  2,
		Failed:     1,
		Created:    3,
		Cached:     1,
		Elapsed:    3 * time.Second,
	})
	require.NoError(t, r.Flush())

	g := goldie.New(t)
	g.Assert(t, "build_stdout", stdout.Bytes())
	g.Assert(t, "build_stderr", stderr.Bytes())
}

func TestRenderer_Quiet(t *testing.T) {
	t.Parallel()

	r, _, stderr := newRenderer(linear.WithQuiet())

	r.OnBuildStart("gen-1", []string{"compile:app"})
	r.OnTaskStart("s1", "parse_module:/a", t0)
	r.OnTaskComplete("s1", t0.Add(time.Second), false, nil)
	r.OnTaskStart("s2", "parse_module:/b", t0)
	r.OnTaskComplete("s2", t0.Add(time.Second), false, errors.New("missing input"))

	out := stderr.String()
	assert.NotContains(t, out, "Starting")
	assert.NotContains(t, out, "parse_module:/a")
	assert.Contains(t, out, "[parse_module:/b] ✗ Failed after 1s: missing input")
}

func TestRenderer_SummaryCountsCancelledSeparately(t *testing.T) {
	t.Parallel()

	r, _, stderr := newRenderer()
	r.OnBuildComplete(ports.BuildSummary{Completed: 1, Created: 1, Cancelled: 2, Elapsed: time.Second})

	assert.Equal(t, "✓ 1 completed, 0 failed, 2 cancelled (1 created, 0 cached) in 1s\n", stderr.String())
}

func TestRenderer_UnknownSpanIgnored(t *testing.T) {
	t.Parallel()

	r, stdout, stderr := newRenderer()
	r.OnTaskLog("missing", []byte("x\n"))
	r.OnTaskComplete("missing", t0, false, nil)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_FlushPrintsPartialLines(t *testing.T) {
	t.Parallel()

	r, stdout, _ := newRenderer()
	r.OnTaskStart("s1", "fetch_external_file:/x", t0)
	r.OnTaskLog("s1", []byte("no newline"))
	require.NoError(t, r.Flush())

	assert.Equal(t, "[fetch_external_file:/x] no newline\n", stdout.String())
}

func TestForMode(t *testing.T) {
	t.Parallel()

	for _, mode := range []detector.OutputMode{detector.ModeTerminal, detector.ModePlain, detector.ModeQuiet} {
		assert.NotNil(t, linear.ForMode(mode, &bytes.Buffer{}, &bytes.Buffer{}))
	}
}
