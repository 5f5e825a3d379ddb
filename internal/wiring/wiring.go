// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/lyric/internal/adapters/cas"
	_ "go.trai.ch/lyric/internal/adapters/config"
	_ "go.trai.ch/lyric/internal/adapters/logger"
	_ "go.trai.ch/lyric/internal/adapters/toolchain"
	// Register app and engine nodes.
	_ "go.trai.ch/lyric/internal/app"
	_ "go.trai.ch/lyric/internal/engine/registry"
)
