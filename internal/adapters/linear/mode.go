package linear

import (
	"io"

	"go.trai.ch/lyric/internal/adapters/detector"
	"go.trai.ch/lyric/internal/ui/output"
)

// ForMode creates the renderer for an output mode on the given writers.
func ForMode(mode detector.OutputMode, stdout, stderr io.Writer) *Renderer {
	switch mode {
	case detector.ModeQuiet:
		return NewRenderer(stdout, stderr, WithQuiet(), WithProfile(output.ColorProfileANSI()))
	case detector.ModeTerminal:
		return NewRenderer(stdout, stderr, WithProfile(output.ColorProfile()))
	default:
		return NewRenderer(stdout, stderr, WithProfile(output.ColorProfileANSI()))
	}
}
