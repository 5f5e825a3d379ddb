package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lyric/internal/core/domain"
)

func TestTaskSettings_ResolveTaskNode(t *testing.T) {
	s := domain.NewTaskSettings()
	s.Global = domain.ConfigMap{"level": "global", "g": 1}
	s.Domains["compile"] = domain.ConfigMap{"level": "domain", "d": 2}
	s.Tasks[domain.NewTaskID("compile", "all")] = domain.ConfigMap{"level": "task", "t": 3}

	key := domain.NewTaskKey("compile", "all", domain.ConfigMap{"level": "param"})
	assert.Equal(t, domain.ConfigMap{"level": "param", "g": 1, "d": 2, "t": 3}, s.ResolveTaskNode(key))

	other := domain.NewTaskKey("compile", "other", nil)
	assert.Equal(t, domain.ConfigMap{"level": "domain", "g": 1, "d": 2}, s.ResolveTaskNode(other))

	var unset *domain.TaskSettings
	assert.Equal(t, domain.ConfigMap{"p": "1"}, unset.ResolveTaskNode(domain.NewTaskKey("x", "y", domain.ConfigMap{"p": "1"})))
}

func TestTaskSettings_Merge(t *testing.T) {
	base := domain.NewTaskSettings()
	base.Global = domain.ConfigMap{"a": 1, "b": 1}
	base.Domains["compile"] = domain.ConfigMap{"x": "base"}

	overrides := domain.NewTaskSettings()
	overrides.Global = domain.ConfigMap{"b": 2}
	overrides.Domains["compile"] = domain.ConfigMap{"y": "over"}
	overrides.Tasks[domain.NewTaskID("archive", "dist")] = domain.ConfigMap{"z": true}

	merged := base.Merge(overrides)
	assert.Equal(t, domain.ConfigMap{"a": 1, "b": 2}, merged.Global)
	assert.Equal(t, domain.ConfigMap{"x": "base", "y": "over"}, merged.Domains["compile"])
	assert.Equal(t, domain.ConfigMap{"z": true}, merged.Tasks[domain.NewTaskID("archive", "dist")])
	assert.Equal(t, domain.ConfigMap{"a": 1, "b": 1}, base.Global, "base is not modified")

	assert.Equal(t, base.Global, base.Merge(nil).Global)
}
