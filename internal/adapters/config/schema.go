package config

// Lyricfile represents the structure of the lyric.yaml configuration file.
type Lyricfile struct {
	Version           string                    `yaml:"version"`
	SourceBase        string                    `yaml:"sourceBase"`
	InstallRoot       string                    `yaml:"installRoot"`
	Jobs              *int                      `yaml:"jobs"`
	WaitTimeoutMillis *int                      `yaml:"waitTimeoutMillis"`
	Cache             CacheDTO                  `yaml:"cache"`
	Global            map[string]any            `yaml:"global"`
	Domains           map[string]map[string]any `yaml:"domains"`
	Tasks             map[string]map[string]any `yaml:"tasks"`
}

// CacheDTO represents the cache section of the configuration.
type CacheDTO struct {
	Mode string `yaml:"mode"`
	Dir  string `yaml:"dir"`
}
