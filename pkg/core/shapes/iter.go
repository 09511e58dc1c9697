// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"iter"
)

// Iter iterates sequentially, in row-major order, over all indices of the concrete dimensions.
//
// It yields the flat index (counter) and a slice of indices for each axis.
// The yielded indices slice is owned by Iter: don't change it inside the loop.
// Scalars (no dimensions) yield once; dimensions with 0 elements yield nothing.
func Iter(dims []int) iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		for _, dim := range dims {
			if dim <= 0 {
				return
			}
		}
		indices := make([]int, len(dims))
		flatIdx := 0
	yielder:
		for {
			if !yield(flatIdx, indices) {
				return
			}
			flatIdx++

			// Increment indices, the last axis changes fastest.
			for axis := len(dims) - 1; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < dims[axis] {
					continue yielder
				}
				// Carry-over to the previous axis.
				indices[axis] = 0
			}
			return
		}
	}
}
