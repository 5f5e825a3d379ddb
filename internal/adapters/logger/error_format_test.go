package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lyric/internal/adapters/logger"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/zerr"
)

func messages(entries []logger.ErrorEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message())
	}
	return out
}

func TestCollectErrorEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "standard error",
			err:  errors.New("plain"),
			want: []string{"plain"},
		},
		{
			name: "wrapped chain",
			err:  zerr.Wrap(zerr.Wrap(errors.New("root cause"), "middle"), "outer"),
			want: []string{"outer", "middle", "root cause"},
		},
		{
			name: "detail keeps sentinel message",
			err:  domain.Detail(domain.ErrUnknownDomain, "domain", "nope"),
			want: []string{"unknown task domain"},
		},
		{
			name: "condition join",
			err:  domain.Condition(domain.ErrTaskFailure, domain.Detail(domain.ErrDependencyFailed, "dependency", "parse_module:/a")),
			want: []string{"task failure", "dependency failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, messages(logger.CollectErrorEntries(tt.err)))
		})
	}
}

func TestCollectErrorEntries_MetadataMovesToMessage(t *testing.T) {
	t.Parallel()

	err := zerr.With(domain.Detail(domain.ErrUnknownDomain, "domain", "nope"), "task", "nope:x")
	entries := logger.CollectErrorEntries(err)

	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"domain": "nope", "task": "nope:x"}, entries[0].Metadata())
}

func TestFormatErrorEntries(t *testing.T) {
	t.Parallel()

	err := zerr.Wrap(zerr.With(errors.New("line one\nline two"), "path", "/a"), "outer")
	got := logger.FormatErrorEntries(logger.CollectErrorEntries(err))

	want := "Error: outer\n\n  Caused by:\n    → line one\n      line two (path=/a)"
	assert.Equal(t, want, got)
}
