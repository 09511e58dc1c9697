// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout computes the memory strides used to read each leaf tensor (placeholder) from the
// index space of a tensor operation.
//
// The functions here are composed as the graph is built: each operation wraps the Fn of its inputs
// into a new Fn. A Fn is only evaluated once the symbolic dimensions are known, given an expr.Env.
// Evaluation is pure: the same env always yields the same strides.
package layout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Strides used to read one leaf tensor from the index space of an operation.
//
// Values holds first one stride per axis of the operation output ("kept" axes), followed by a
// trailing block of NumReduced strides for the axes being reduced by enclosing reductions, in loop
// nesting order (outermost first).
//
// The address of an element is Offset + Σ index[k] * Values[k].
type Strides struct {
	Values     []int64
	NumReduced int
	Offset     int64
}

// Kept returns the strides of the output axes.
func (s Strides) Kept() []int64 {
	return s.Values[:len(s.Values)-s.NumReduced]
}

// Reduced returns the strides of the axes being reduced.
func (s Strides) Reduced() []int64 {
	return s.Values[len(s.Values)-s.NumReduced:]
}

// Clone returns a copy that doesn't share the Values slice.
func (s Strides) Clone() Strides {
	s.Values = slices.Clone(s.Values)
	return s
}

// String implements fmt.Stringer, e.g.: "[4 1 | 12]+3".
func (s Strides) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for ii, v := range s.Values {
		if ii > 0 {
			if ii == len(s.Values)-s.NumReduced {
				sb.WriteString(" | ")
			} else {
				sb.WriteByte(' ')
			}
		} else if s.NumReduced == len(s.Values) && s.NumReduced > 0 {
			sb.WriteString("| ")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteByte(']')
	if s.Offset != 0 {
		fmt.Fprintf(&sb, "+%d", s.Offset)
	}
	return sb.String()
}

// Fn computes the strides of every leaf access of an operation, one entry per access, in the
// depth-first order in which the leaves are visited (inputs in order).
type Fn func(env expr.Env) ([]Strides, error)

// Contiguous returns the row-major strides of the given dimensions: the stride of axis i is the
// product of all dimensions after i.
func Contiguous(dims []int) []int64 {
	strides := make([]int64, len(dims))
	stride := int64(1)
	for axis := len(dims) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= int64(dims[axis])
	}
	return strides
}

// Placeholder returns the Fn of a leaf tensor of the given shape, laid out contiguously.
func Placeholder(shape shapes.Shape) Fn {
	return func(env expr.Env) ([]Strides, error) {
		dims, err := shape.Concrete(env)
		if err != nil {
			return nil, errors.WithMessagef(err, "strides of placeholder %s", shape)
		}
		return []Strides{{Values: Contiguous(dims)}}, nil
	}
}

// Elementwise returns the Fn of an operation that maps each element of its only input to the
// element at the same index: strides pass through unchanged.
func Elementwise(input Fn) Fn {
	return input
}

// mapStrides applies fn to every Strides returned by input.
func mapStrides(input Fn, fn func(env expr.Env, s Strides) (Strides, error)) Fn {
	return func(env expr.Env) ([]Strides, error) {
		inputs, err := input(env)
		if err != nil {
			return nil, err
		}
		results := make([]Strides, len(inputs))
		for ii, s := range inputs {
			results[ii], err = fn(env, s)
			if err != nil {
				return nil, errors.WithMessagef(err, "leaf access #%d", ii)
			}
		}
		return results, nil
	}
}

// Binary returns the Fn of an element-wise binary operation whose operands, of shapes lhsShape
// and rhsShape, are broadcast to resultShape.
//
// Shapes are right-aligned. For each axis of the result, the operand keeps its stride if its
// dimension equals the result's, or gets stride 0 if its dimension is 1 or the axis falls in its
// left padding. Anything else returns a *shapes.ShapeError. The reduced strides are preserved.
func Binary(lhsShape, rhsShape, resultShape shapes.Shape, lhsFn, rhsFn Fn) Fn {
	lhs := broadcastTo(lhsShape, resultShape, lhsFn)
	rhs := broadcastTo(rhsShape, resultShape, rhsFn)
	return func(env expr.Env) ([]Strides, error) {
		lhsStrides, err := lhs(env)
		if err != nil {
			return nil, err
		}
		rhsStrides, err := rhs(env)
		if err != nil {
			return nil, err
		}
		return append(lhsStrides, rhsStrides...), nil
	}
}

// broadcastTo returns the Fn of operand, seen from the index space of result.
func broadcastTo(operand, result shapes.Shape, input Fn) Fn {
	return mapStrides(input, func(env expr.Env, s Strides) (Strides, error) {
		operandDims, err := operand.Concrete(env)
		if err != nil {
			return Strides{}, err
		}
		resultDims, err := result.Concrete(env)
		if err != nil {
			return Strides{}, err
		}
		kept := s.Kept()
		if len(kept) != len(operandDims) {
			return Strides{}, errors.Errorf("operand %s has rank %d, but got %d strides %s",
				operand, len(operandDims), len(kept), s)
		}
		rank := len(resultDims)
		padding := rank - len(operandDims)
		values := make([]int64, rank, rank+s.NumReduced)
		for axis, resultDim := range resultDims {
			operandAxis := axis - padding
			switch {
			case operandAxis < 0, operandDims[operandAxis] == 1:
				values[axis] = 0
			case operandDims[operandAxis] == resultDim:
				values[axis] = kept[operandAxis]
			default:
				return Strides{}, shapes.Errorf("Broadcast", []shapes.Shape{operand, result},
					"axis #%d with dimension %d can't be broadcast to %d", operandAxis, operandDims[operandAxis], resultDim)
			}
		}
		values = append(values, s.Reduced()...)
		return Strides{Values: values, NumReduced: s.NumReduced, Offset: s.Offset}, nil
	})
}

// Reduce returns the Fn of a reduction of the given axes (normalized, see shapes.Reduce) of an
// operand of the given rank.
//
// The kept strides come first, in order, then the strides of the reduced axes, then the strides
// reduced by earlier reductions: the loop nest places the reduction loops innermost.
func Reduce(input Fn, rank int, axes []int) Fn {
	return mapStrides(input, func(_ expr.Env, s Strides) (Strides, error) {
		kept := s.Kept()
		if len(kept) != rank {
			return Strides{}, errors.Errorf("reduce of rank %d operand, but got %d strides %s", rank, len(kept), s)
		}
		values := make([]int64, 0, len(s.Values))
		for axis, stride := range kept {
			if !slices.Contains(axes, axis) {
				values = append(values, stride)
			}
		}
		for _, axis := range axes {
			values = append(values, kept[axis])
		}
		values = append(values, s.Reduced()...)
		return Strides{Values: values, NumReduced: s.NumReduced + len(axes), Offset: s.Offset}, nil
	})
}

// Slice returns the Fn of a slice of its input, given the specs resolved by shapes.Slice.
//
// The stride of each axis is multiplied by its step, and the offset grows by start times the
// original stride.
func Slice(specs []shapes.SliceSpec, input Fn) Fn {
	return mapStrides(input, func(env expr.Env, s Strides) (Strides, error) {
		kept := s.Kept()
		if len(kept) != len(specs) {
			return Strides{}, errors.Errorf("slice with %d axes, but got %d strides %s", len(specs), len(kept), s)
		}
		result := s.Clone()
		evaluator := expr.NewIdxEvaluator(env)
		for axis, spec := range specs {
			start, err := evaluator.Eval(spec.Start)
			if err != nil {
				return Strides{}, errors.WithMessagef(err, "slice start of axis #%d", axis)
			}
			step, err := evaluator.Eval(spec.Step)
			if err != nil {
				return Strides{}, errors.WithMessagef(err, "slice step of axis #%d", axis)
			}
			result.Offset += start * kept[axis]
			result.Values[axis] = kept[axis] * step
		}
		return result, nil
	})
}

// Reshape returns the Fn of a reshape from one shape to another, given the groups returned by
// shapes.ReshapeGroups.
//
// Split axes multiply out their stride. Merged axes must be laid out contiguously with respect to
// each other, otherwise evaluation returns a *shapes.ShapeError. ReshapePattern makes the same check
// on the symbolic strides, so for a reshape it accepted evaluation never fails.
func Reshape(from, to shapes.Shape, groups []shapes.ReshapeGroup, input Fn) Fn {
	return mapStrides(input, func(env expr.Env, s Strides) (Strides, error) {
		fromDims, err := from.Concrete(env)
		if err != nil {
			return Strides{}, err
		}
		toDims, err := to.Concrete(env)
		if err != nil {
			return Strides{}, err
		}
		kept := s.Kept()
		if len(kept) != len(fromDims) {
			return Strides{}, errors.Errorf("reshape from rank %d, but got %d strides %s", len(fromDims), len(kept), s)
		}
		values := make([]int64, len(toDims), len(toDims)+s.NumReduced)
		for _, group := range groups {
			if len(group.To) == 0 {
				// Dropped size-1 axis.
				continue
			}

			// Stride of the group as a whole: the stride of its innermost non-trivial axis.
			var stride int64
			var innerAxis = -1
			for ii := len(group.From) - 1; ii >= 0; ii-- {
				axis := group.From[ii]
				if fromDims[axis] == 1 {
					continue
				}
				if innerAxis < 0 {
					stride = kept[axis]
				} else if kept[axis] != kept[innerAxis]*int64(fromDims[innerAxis]) {
					return Strides{}, shapes.Errorf("Reshape", []shapes.Shape{from, to},
						"axes %v are not contiguous in memory (strides %v), they can't be merged",
						group.From, kept)
				}
				innerAxis = axis
			}

			// Split the stride among the target axes.
			for ii := len(group.To) - 1; ii >= 0; ii-- {
				axis := group.To[ii]
				values[axis] = stride
				stride *= int64(toDims[axis])
			}
		}
		values = append(values, s.Reduced()...)
		if klog.V(3).Enabled() {
			klog.Infof("layout.Reshape %s -> %s: strides %s -> %v", from, to, s, values)
		}
		return Strides{Values: values, NumReduced: s.NumReduced, Offset: s.Offset}, nil
	})
}
