// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/support/sets"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Broadcast returns the shape resulting from combining lhs and rhs element-wise in operation op.
//
// Shapes are aligned to the right (NumPy rules): the operand with the lower rank is padded with
// size-1 axes on the left. On each axis the dimensions must be equal, or one of them must be 1.
// The dtypes must match.
func Broadcast(op string, lhs, rhs Shape) (Shape, error) {
	if !lhs.Ok() || !rhs.Ok() {
		return Shape{}, Errorf(op, []Shape{lhs, rhs}, "invalid operand shape")
	}
	if lhs.DType != rhs.DType {
		return Shape{}, Errorf(op, []Shape{lhs, rhs}, "data types (DType) must match, got %s and %s",
			lhs.DType, rhs.DType)
	}
	rank := max(lhs.Rank(), rhs.Rank())
	output := Shape{DType: lhs.DType, Dimensions: make([]expr.Expr, rank)}
	for axis := range rank {
		lhsDim, rhsDim := PaddedDim(lhs, rank, axis), PaddedDim(rhs, rank, axis)
		switch {
		case IsOne(lhsDim):
			output.Dimensions[axis] = rhsDim
		case IsOne(rhsDim), DimsEqual(lhsDim, rhsDim):
			output.Dimensions[axis] = lhsDim
		default:
			return Shape{}, Errorf(op, []Shape{lhs, rhs},
				"dimension of axis #%d doesn't match and cannot be broadcast: %s != %s", axis, lhsDim, rhsDim)
		}
	}
	return output, nil
}

// PaddedDim returns the dimension of s at axis, when s is right-aligned to the given rank.
// Axes that fall in the padding are 1.
func PaddedDim(s Shape, rank, axis int) expr.Expr {
	shifted := axis - (rank - s.Rank())
	if shifted < 0 {
		return expr.MakeInt(dtypes.Int64, 1)
	}
	return s.Dimensions[shifted]
}

// Reduce returns the shape resulting from reducing the given axes, and the normalized axes:
// negative axes are converted, and the result is sorted and without duplicates.
//
// If no axes are given, all axes are reduced.
func Reduce(op string, operand Shape, axes []int) (Shape, []int, error) {
	rank := operand.Rank()
	if len(axes) == 0 {
		axes = make([]int, rank)
		for ii := range axes {
			axes[ii] = ii
		}
	}
	reduced := sets.Make[int](len(axes))
	for _, axis := range axes {
		adjusted := axis
		if adjusted < 0 {
			adjusted += rank
		}
		if adjusted < 0 || adjusted >= rank {
			return Shape{}, nil, Errorf(op, []Shape{operand},
				"reduce axis %d out of range, each axis must be -rank <= axis < rank (rank=%d)", axis, rank)
		}
		reduced.Insert(adjusted)
	}
	normalized := sets.Sorted(reduced)
	output := Shape{DType: operand.DType, Dimensions: make([]expr.Expr, 0, rank-len(normalized))}
	for axis, dim := range operand.Dimensions {
		if !reduced.Has(axis) {
			output.Dimensions = append(output.Dimensions, dim)
		}
	}
	return output, normalized, nil
}

// SliceSpec selects the range [Start, Stop) with the given Step of one axis.
//
// A nil Start means 0, a nil Stop means the end of the axis and a nil Step means 1.
// Negative literal Start and Stop count from the end of the axis.
type SliceSpec struct {
	Start, Stop, Step expr.Expr
}

// All selects the whole axis.
func All() SliceSpec {
	return SliceSpec{}
}

// Range selects [start, stop) of the axis.
func Range(start, stop any) SliceSpec {
	return SliceSpec{Start: expr.AsExpr(start), Stop: expr.AsExpr(stop)}
}

// RangeStep selects [start, stop) of the axis, taking every step elements.
func RangeStep(start, stop, step any) SliceSpec {
	return SliceSpec{Start: expr.AsExpr(start), Stop: expr.AsExpr(stop), Step: expr.AsExpr(step)}
}

// Index selects only the element at position index. The axis is kept, with dimension 1.
func Index(index any) SliceSpec {
	start := expr.AsExpr(index)
	return SliceSpec{Start: start, Stop: expr.Simplify(expr.Plus(start, 1))}
}

// Slice returns the shape resulting from slicing operand with one spec per axis (missing trailing
// specs select the whole axis), and the specs resolved against the operand dimensions: all fields
// set, negative bounds converted.
//
// Every invalid axis is reported in the returned *ShapeError.
func Slice(operand Shape, specs []SliceSpec) (Shape, []SliceSpec, error) {
	rank := operand.Rank()
	if len(specs) > rank {
		return Shape{}, nil, Errorf("Slice", []Shape{operand}, "%d axes given to slice, but rank is %d",
			len(specs), rank)
	}
	output := Shape{DType: operand.DType, Dimensions: make([]expr.Expr, rank)}
	resolved := make([]SliceSpec, rank)
	var errs error
	for axis := range rank {
		var spec SliceSpec
		if axis < len(specs) {
			spec = specs[axis]
		}
		r, err := resolveSliceSpec(spec, operand.Dimensions[axis])
		if err != nil {
			errs = multierr.Append(errs, errors.WithMessagef(err, "axis #%d", axis))
			continue
		}
		resolved[axis] = r
		output.Dimensions[axis] = expr.Simplify(
			expr.Quo(expr.Plus(expr.Minus(r.Stop, r.Start), expr.Minus(r.Step, 1)), r.Step))
	}
	if errs != nil {
		return Shape{}, nil, newShapeError("Slice", errs, operand)
	}
	return output, resolved, nil
}

func resolveSliceSpec(spec SliceSpec, dim expr.Expr) (SliceSpec, error) {
	var r SliceSpec
	resolveBound := func(bound expr.Expr) expr.Expr {
		if v, ok := expr.IntValue(bound); ok && v < 0 {
			return expr.Simplify(expr.Plus(dim, bound))
		}
		return expr.Simplify(bound)
	}
	r.Start = expr.MakeInt(dtypes.Int64, 0)
	if spec.Start != nil {
		r.Start = resolveBound(spec.Start)
	}
	r.Stop = dim
	if spec.Stop != nil {
		r.Stop = resolveBound(spec.Stop)
	}
	r.Step = expr.MakeInt(dtypes.Int64, 1)
	if spec.Step != nil {
		r.Step = expr.Simplify(spec.Step)
	}

	step, ok := expr.IntValue(r.Step)
	if !ok || step <= 0 {
		return r, errors.Errorf("step must be a positive integer literal, got %s", r.Step)
	}
	start, startKnown := expr.IntValue(r.Start)
	stop, stopKnown := expr.IntValue(r.Stop)
	size, sizeKnown := expr.IntValue(dim)
	if startKnown && start < 0 {
		return r, errors.Errorf("start %s out of bounds for dimension %s", spec.Start, dim)
	}
	if startKnown && stopKnown && stop < start {
		return r, errors.Errorf("stop %d is smaller than start %d", stop, start)
	}
	if sizeKnown {
		if stopKnown && stop > size {
			return r, errors.Errorf("stop %d out of bounds for dimension %d", stop, size)
		}
		if startKnown && start > size {
			return r, errors.Errorf("start %d out of bounds for dimension %d", start, size)
		}
	}
	return r, nil
}
