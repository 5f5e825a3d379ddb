// Package detector selects how build progress is rendered for the current environment.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the rendering mode for build progress.
type OutputMode int

const (
	// ModeAuto detects the mode from the environment.
	ModeAuto OutputMode = iota
	// ModeTerminal renders lines with the terminal's full color profile.
	ModeTerminal
	// ModePlain renders with basic ANSI colors for CI logs and pipes.
	ModePlain
	// ModeQuiet only reports failures and the build summary.
	ModeQuiet
	// ModeTUI runs the interactive full-screen interface.
	ModeTUI
)

// DetectEnvironment returns the recommended output mode.
// Output that is not a terminal, or runs under CI, is rendered plain. An
// interactive terminal gets the full-screen interface.
func DetectEnvironment() OutputMode {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return ModePlain
	}
	return ModeTUI
}

// ResolveMode applies the user's --output flag to the detected mode.
// Accepted values are "auto", "tui", "terminal", "plain", "ci" and "quiet".
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "tui":
		return ModeTUI
	case "terminal":
		return ModeTerminal
	case "plain", "ci":
		return ModePlain
	case "quiet":
		return ModeQuiet
	default:
		return autoDetected
	}
}
