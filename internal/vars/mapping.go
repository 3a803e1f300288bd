package vars

import (
	"sort"
	"strings"
)

// Mapping renames script variables when references are rewritten.
// Names absent from the table are kept as they are.
type Mapping map[string]string

func (m Mapping) Lookup(name string) string {
	if m == nil {
		return name
	}
	if mapped, ok := m[name]; ok && strings.TrimSpace(mapped) != "" {
		return mapped
	}
	return name
}

// Merge returns a new table; entries of other override entries of m.
func (m Mapping) Merge(other Mapping) Mapping {
	out := make(Mapping, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (m Mapping) Names() []string {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
