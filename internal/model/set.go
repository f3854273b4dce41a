package model

import (
	"cmp"
	"slices"

	"golang.org/x/exp/maps"
)

// Set is a generic hash set for comparable types.
// It is mutable: Add modifies the set in place, Union and Intersect return new sets.
type Set[T comparable] map[T]struct{}

// NewSet creates a Set holding the provided elements.
func NewSet[T comparable](data ...T) Set[T] {
	set := make(Set[T], len(data))
	for _, d := range data {
		set[d] = struct{}{}
	}
	return set
}

// Add inserts one or more elements into the set.
func (s Set[T]) Add(values ...T) {
	for _, val := range values {
		s[val] = struct{}{}
	}
}

// Has reports whether value is a member of the set.
func (s Set[T]) Has(value T) bool {
	_, ok := s[value]
	return ok
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for val := range s {
		out[val] = struct{}{}
	}
	return out
}

// Union returns a new set containing members of s and every other set.
func (s Set[T]) Union(others ...Set[T]) Set[T] {
	out := s.Clone()
	for _, other := range others {
		for val := range other {
			out[val] = struct{}{}
		}
	}
	return out
}

// Intersect returns a new set containing members present in s and every other set.
func (s Set[T]) Intersect(others ...Set[T]) Set[T] {
	out := make(Set[T])
	for val := range s {
		keep := true
		for _, other := range others {
			if !other.Has(val) {
				keep = false
				break
			}
		}
		if keep {
			out[val] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s Set[T]) Equal(other Set[T]) bool {
	if len(s) != len(other) {
		return false
	}
	for val := range s {
		if !other.Has(val) {
			return false
		}
	}
	return true
}

// ToSlice returns the members in unspecified order.
func (s Set[T]) ToSlice() []T {
	return maps.Keys(s)
}

// Sorted returns the members of an ordered set in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}
