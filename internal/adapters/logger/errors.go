package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// messager matches errors that report their own message without the cause chain, such as zerr.Error.
type messager interface {
	Message() string
}

// metadataHolder matches errors carrying structured metadata, such as zerr.Error.
type metadataHolder interface {
	Metadata() map[string]any
}

// errorEntry is one level of an error chain.
type errorEntry struct {
	message  string
	metadata map[string]any
}

const maxErrorDepth = 100

// collectErrorEntries flattens an error chain into entries, outermost first.
// Joined errors contribute their members in order. Levels without a message
// pass their metadata on to the next level.
func collectErrorEntries(err error) []errorEntry {
	var entries []errorEntry
	var pending map[string]any

	var walk func(err error, depth int)
	walk = func(err error, depth int) {
		for current := err; current != nil && depth < maxErrorDepth; depth++ {
			if joined, ok := current.(interface{ Unwrap() []error }); ok {
				for _, member := range joined.Unwrap() {
					walk(member, depth+1)
				}
				return
			}

			m, ok := current.(messager)
			if !ok {
				entries = append(entries, errorEntry{message: current.Error(), metadata: pending})
				pending = nil
				return
			}

			var md map[string]any
			if h, isHolder := current.(metadataHolder); isHolder {
				md = h.Metadata()
			}
			if m.Message() == "" {
				pending = merge(pending, md)
			} else {
				entries = append(entries, errorEntry{message: m.Message(), metadata: merge(pending, md)})
				pending = nil
			}
			current = errors.Unwrap(current)
		}
	}
	walk(err, 0)

	if len(pending) > 0 && len(entries) > 0 {
		last := &entries[len(entries)-1]
		last.metadata = merge(last.metadata, pending)
	}
	return entries
}

func merge(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}

// formatErrorEntries renders entries as an "Error:" line followed by an indented cause list.
func formatErrorEntries(entries []errorEntry) string {
	var lines []string

	for i, entry := range entries {
		text := entry.message + formatMetadata(entry.metadata)
		parts := strings.Split(text, "\n")

		switch i {
		case 0:
			lines = append(lines, "Error: "+parts[0])
			for _, line := range parts[1:] {
				lines = append(lines, "       "+line)
			}
		default:
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
			lines = append(lines, "    → "+parts[0])
			for _, line := range parts[1:] {
				lines = append(lines, "      "+line)
			}
		}
	}

	return strings.Join(lines, "\n")
}

func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(md))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
