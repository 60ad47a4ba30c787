package datamodel

import "strings"

// ReplaceSuffix marks an update key whose value replaces the current one
// as a whole instead of being merged into it.
const ReplaceSuffix = "!"

// merge folds src into dst. Maps are merged key by key, recursively; any
// other value replaces dst. A key ending in ReplaceSuffix assigns its value
// to the plain key without merging. The result never aliases src.
func merge(dst, src any) any {
	sm, ok := src.(map[string]any)
	if !ok {
		return deepCopy(src)
	}
	dm, ok := dst.(map[string]any)
	if !ok {
		dm = make(map[string]any, len(sm))
	} else {
		dm = deepCopy(dm).(map[string]any)
	}
	for k, v := range sm {
		if key, raw := strings.CutSuffix(k, ReplaceSuffix); raw {
			dm[key] = deepCopy(v)
			continue
		}
		dm[k] = merge(dm[k], v)
	}
	return dm
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = deepCopy(e)
		}
		return s
	case []float64:
		return append([]float64(nil), x...)
	case []string:
		return append([]string(nil), x...)
	}
	return v
}
