package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// ConfigMap holds task configuration values as decoded from YAML: strings, numbers,
// booleans, lists and nested maps.
type ConfigMap map[string]any

// Clone returns a deep copy of the map.
func (m ConfigMap) Clone() ConfigMap {
	if m == nil {
		return nil
	}
	out := make(ConfigMap, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(ConfigMap(val).Clone())
	case ConfigMap:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(val)
	default:
		return val
	}
}

// Merge returns a copy of m overlaid with every value of overrides.
// Nested maps are merged recursively, all other values are replaced.
func (m ConfigMap) Merge(overrides ConfigMap) ConfigMap {
	out := m.Clone()
	if out == nil {
		out = ConfigMap{}
	}
	for k, v := range overrides {
		existing, ok := out[k]
		if !ok {
			out[k] = cloneValue(v)
			continue
		}
		base, baseIsMap := asMap(existing)
		over, overIsMap := asMap(v)
		if baseIsMap && overIsMap {
			out[k] = map[string]any(base.Merge(over))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) (ConfigMap, bool) {
	switch val := v.(type) {
	case map[string]any:
		return ConfigMap(val), true
	case ConfigMap:
		return val, true
	default:
		return nil, false
	}
}

// Canonical returns a deterministic encoding of the map. Map keys are sorted at every level.
func (m ConfigMap) Canonical() string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		// Values come from YAML or flag parsing, which only produce encodable types.
		return fmt.Sprintf("%v", map[string]any(m))
	}
	return string(data)
}

// Keys returns the keys of the map in sorted order.
func (m ConfigMap) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// String returns the string value of key. ok is false if the key is absent.
func (m ConfigMap) String(key string) (string, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int, int64, float64, bool:
		return fmt.Sprint(val), true, nil
	default:
		return "", true, zerr.With(Detail(ErrInvalidConfigValue, "key", key), "expected", "string")
	}
}

// RequireString returns the string value of key, failing if it is absent or empty.
func (m ConfigMap) RequireString(key string) (string, error) {
	s, ok, err := m.String(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", Detail(ErrMissingConfigValue, "key", key)
	}
	return s, nil
}

// StringList returns the list value of key. A single string is treated as a one-element list,
// and a comma separated string is split.
func (m ConfigMap) StringList(key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		var out []string
		for part := range strings.SplitSeq(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return slices.Clone(val), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, isString := item.(string)
			if !isString {
				return nil, zerr.With(Detail(ErrInvalidConfigValue, "key", key), "expected", "list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, zerr.With(Detail(ErrInvalidConfigValue, "key", key), "expected", "list of strings")
	}
}

// Bool returns the boolean value of key, or def if it is absent.
func (m ConfigMap) Bool(key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return def, zerr.With(Detail(ErrInvalidConfigValue, "key", key), "expected", "bool")
		}
		return b, nil
	default:
		return def, zerr.With(Detail(ErrInvalidConfigValue, "key", key), "expected", "bool")
	}
}

// ParseParam parses a key=value pair as given on the command line.
func ParseParam(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", Detail(ErrInvalidParam, "param", s)
	}
	return key, value, nil
}
