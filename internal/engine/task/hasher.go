package task

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/lyric/internal/core/domain"
)

// ConfigHash fingerprints a task's key, its merged configuration and the inputs its body reported.
func ConfigHash(key domain.TaskKey, config domain.ConfigMap, inputs []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(key.String())
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(config.Canonical())
	for _, input := range inputs {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(input)
	}
	return formatSum(h.Sum64())
}

// TaskHash combines a config hash with the hashes of the dependencies, visited in key order.
func TaskHash(configHash string, depStates map[domain.TaskKey]domain.TaskState) string {
	h := xxhash.New()
	_, _ = h.WriteString(configHash)
	for _, key := range slices.SortedFunc(maps.Keys(depStates), domain.CompareTaskKeys) {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(key.String())
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(depStates[key].Hash)
	}
	return formatSum(h.Sum64())
}

func formatSum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
