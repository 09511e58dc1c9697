// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implements a generic Set, used by the compiler to track names (bound variables,
// buffers, visited nodes) and axes.
package sets

import (
	"cmp"
	"maps"
	"slices"
)

// Set of keys of type T. The zero value (nil) is a valid empty set for reading, use Make to
// insert into it.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set. The optional size reserves space for that many elements.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// Has returns whether key is in the set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into the set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Sorted returns the keys of the set in ascending order, for deterministic output.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(maps.Keys(s))
}
