package ports

import "go.trai.ch/lyric/internal/core/domain"

// Configuration is the loaded project configuration.
type Configuration struct {
	Builder  domain.BuilderConfig
	Settings *domain.TaskSettings
	// Path is the config file the configuration was read from. Empty when defaults are used.
	Path string
}

// ConfigLoader defines the interface for loading the build configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers the configuration by walking up from cwd.
	// Defaults rooted at cwd are returned when no config file exists.
	Load(cwd string) (*Configuration, error)
}
