package domain

// TaskSettings holds the layered task configuration: values for every task,
// values per domain and values per task id.
type TaskSettings struct {
	Global  ConfigMap
	Domains map[string]ConfigMap
	Tasks   map[TaskID]ConfigMap
}

// NewTaskSettings creates an empty TaskSettings.
func NewTaskSettings() *TaskSettings {
	return &TaskSettings{
		Global:  ConfigMap{},
		Domains: make(map[string]ConfigMap),
		Tasks:   make(map[TaskID]ConfigMap),
	}
}

// ResolveTaskNode returns the effective configuration of key. Layers are applied in order
// global, domain, task, and finally the key parameters.
func (s *TaskSettings) ResolveTaskNode(key TaskKey) ConfigMap {
	node := ConfigMap{}
	if s != nil {
		node = node.Merge(s.Global)
		node = node.Merge(s.Domains[key.Domain()])
		node = node.Merge(s.Tasks[key.TaskID()])
	}
	return node.Merge(key.Params())
}

// Merge returns new settings with overrides applied on top of s.
func (s *TaskSettings) Merge(overrides *TaskSettings) *TaskSettings {
	out := NewTaskSettings()
	for _, layer := range []*TaskSettings{s, overrides} {
		if layer == nil {
			continue
		}
		out.Global = out.Global.Merge(layer.Global)
		for domain, cfg := range layer.Domains {
			out.Domains[domain] = out.Domains[domain].Merge(cfg)
		}
		for id, cfg := range layer.Tasks {
			out.Tasks[id] = out.Tasks[id].Merge(cfg)
		}
	}
	return out
}

// CacheMode selects the cache implementation.
type CacheMode string

const (
	// CacheModeMemory keeps the cache in process memory.
	CacheModeMemory CacheMode = "memory"
	// CacheModePersistent keeps the cache on disk.
	CacheModePersistent CacheMode = "persistent"
)

// BuilderConfig holds the builder options read from the config file.
type BuilderConfig struct {
	Root              string
	SourceBase        string
	InstallRoot       string
	CacheDir          string
	CacheMode         CacheMode
	Jobs              int
	WaitTimeoutMillis int
}

// DefaultBuilderConfig returns the configuration used when no config file exists.
func DefaultBuilderConfig(root string) BuilderConfig {
	return BuilderConfig{
		Root:              root,
		SourceBase:        DefaultSourceBase,
		InstallRoot:       DefaultInstallRoot,
		CacheDir:          DefaultCachePath(),
		CacheMode:         CacheModeMemory,
		Jobs:              -1,
		WaitTimeoutMillis: DefaultWaitTimeoutMillis,
	}
}
