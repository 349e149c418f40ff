package togglekit

import (
	"sort"
)

func sortedKeys[Map ~map[string]V, V any](m Map) []string {
	keys := make([]string, len(m))
	i := 0
	for key := range m {
		keys[i] = key
		i++
	}
	sort.Strings(keys)
	return keys
}
