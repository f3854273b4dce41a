package model

import "slices"

// SourceSet maps a source key (contract address or logical source name) to the
// addresses observed for it.
type SourceSet map[string]Set[string]

// Add records address under source.
func (s SourceSet) Add(source string, address string) {
	set, ok := s[source]
	if !ok {
		set = NewSet[string]()
		s[source] = set
	}
	set.Add(address)
}

// Ensure creates an empty entry for source when none exists.
func (s SourceSet) Ensure(source string) {
	if _, ok := s[source]; !ok {
		s[source] = NewSet[string]()
	}
}

// Merge copies every entry of other into s, unioning shared keys.
func (s SourceSet) Merge(other SourceSet) {
	for source, set := range other {
		s.Ensure(source)
		s[source].Add(set.ToSlice()...)
	}
}

// Keys returns the source keys in ascending order.
func (s SourceSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
