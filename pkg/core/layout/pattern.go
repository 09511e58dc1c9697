// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"slices"

	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Pattern holds, for every leaf access of an operation, the symbolic strides of its output axes.
//
// It follows the same derivations as Fn, but with the dimensions kept as expressions, so it is known
// as soon as the node is built, before any dimension is bound. Reshapes are validated against it.
//
// Strides of axes being reduced are not tracked: reshapes only regroup output axes.
type Pattern [][]expr.Expr

// PlaceholderPattern returns the Pattern of a leaf tensor of the given shape, laid out contiguously.
func PlaceholderPattern(shape shapes.Shape) Pattern {
	strides := make([]expr.Expr, shape.Rank())
	stride := expr.AsExpr(1)
	for axis := shape.Rank() - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride = expr.Times(stride, shape.Dim(axis))
	}
	return Pattern{strides}
}

// BinaryPattern is the Pattern counterpart of Binary.
//
// An axis is broadcast if it falls in the operand's left padding, or if the operand's dimension is
// the literal 1: shape inference only accepts otherwise dimensions equal to the result's.
func BinaryPattern(lhsShape, rhsShape, resultShape shapes.Shape, lhs, rhs Pattern) Pattern {
	result := make(Pattern, 0, len(lhs)+len(rhs))
	for _, side := range []struct {
		shape   shapes.Shape
		pattern Pattern
	}{{lhsShape, lhs}, {rhsShape, rhs}} {
		padding := resultShape.Rank() - side.shape.Rank()
		for _, kept := range side.pattern {
			values := make([]expr.Expr, resultShape.Rank())
			for axis := range values {
				operandAxis := axis - padding
				if operandAxis < 0 || shapes.IsOne(side.shape.Dim(operandAxis)) {
					values[axis] = expr.AsExpr(0)
				} else {
					values[axis] = kept[operandAxis]
				}
			}
			result = append(result, values)
		}
	}
	return result
}

// ReducePattern is the Pattern counterpart of Reduce: the reduced axes are dropped.
func ReducePattern(input Pattern, axes []int) Pattern {
	result := make(Pattern, len(input))
	for ii, kept := range input {
		values := make([]expr.Expr, 0, len(kept))
		for axis, stride := range kept {
			if !slices.Contains(axes, axis) {
				values = append(values, stride)
			}
		}
		result[ii] = values
	}
	return result
}

// SlicePattern is the Pattern counterpart of Slice: strides are multiplied by the step.
func SlicePattern(specs []shapes.SliceSpec, input Pattern) Pattern {
	result := make(Pattern, len(input))
	for ii, kept := range input {
		values := make([]expr.Expr, len(kept))
		for axis, stride := range kept {
			values[axis] = expr.Times(stride, specs[axis].Step)
		}
		result[ii] = values
	}
	return result
}

// ReshapePattern is the Pattern counterpart of Reshape.
//
// It returns a *shapes.ShapeError if the axes merged by some group can't be proven contiguous in
// memory for every leaf access, e.g. the input is a broadcast, a slice with step, or a reduction of
// an axis between the merged ones. Axes of literal dimension 1 are ignored.
func ReshapePattern(from, to shapes.Shape, groups []shapes.ReshapeGroup, input Pattern) (Pattern, error) {
	result := make(Pattern, len(input))
	for ii, kept := range input {
		if len(kept) != from.Rank() {
			return nil, errors.Errorf("reshape from rank %d, but leaf access #%d has %d strides", from.Rank(), ii, len(kept))
		}
		values := make([]expr.Expr, to.Rank())
		for _, group := range groups {
			if len(group.To) == 0 {
				continue
			}
			stride := expr.AsExpr(0)
			innerAxis := -1
			for jj := len(group.From) - 1; jj >= 0; jj-- {
				axis := group.From[jj]
				if shapes.IsOne(from.Dim(axis)) {
					continue
				}
				if innerAxis < 0 {
					stride = kept[axis]
				} else if !shapes.SameProduct(kept[axis], expr.Times(kept[innerAxis], from.Dim(innerAxis))) {
					return nil, shapes.Errorf("Reshape", []shapes.Shape{from, to},
						"axes %v are not contiguous in memory (strides %v), they can't be merged",
						group.From, kept)
				}
				innerAxis = axis
			}
			for jj := len(group.To) - 1; jj >= 0; jj-- {
				axis := group.To[jj]
				values[axis] = stride
				stride = expr.Times(stride, to.Dim(axis))
			}
		}
		result[ii] = values
	}
	return result, nil
}
