// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines the symbolic Shape of tensors and the shape inference rules of the
// tensor operations: broadcasting, reduction, slicing and reshaping.
//
// A dimension is an expr.Expr: either a concrete literal (e.g. 4) or a symbolic expression
// (e.g. "n", or "n*2") resolved to a number only at run time, through an expr.Env.
//
// Shape inference fails with a *ShapeError, at graph construction time.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/pkg/errors"
)

// Shape of a tensor: its element DType and the size of each of its axes.
//
// Shapes are values: the Dimensions slice must not be modified after the shape is created,
// use Clone to get a modifiable copy.
type Shape struct {
	DType      dtypes.DType
	Dimensions []expr.Expr
}

// Make returns a Shape with the given dtype and dimensions. Dimensions can be Go integers,
// names of symbolic dimensions (strings) or expr.Expr.
func Make(dtype dtypes.DType, dimensions ...any) Shape {
	s := Shape{DType: dtype, Dimensions: make([]expr.Expr, len(dimensions))}
	for ii, dim := range dimensions {
		e := expr.Simplify(expr.AsExpr(dim))
		if v, ok := expr.IntValue(e); ok && v < 0 {
			exceptions.Panicf("shapes.Make(%s, %v): dimension #%d is negative", dtype, dimensions, ii)
		}
		s.Dimensions[ii] = e
	}
	return s
}

// Scalar returns a scalar shape for the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Shape{DType: dtype}
}

// Ok returns whether this is a valid Shape: the zero value is not.
func (s Shape) Ok() bool {
	return s.DType != dtypes.InvalidDType
}

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int {
	return len(s.Dimensions)
}

// IsScalar returns whether the shape has no axes.
func (s Shape) IsScalar() bool {
	return s.Ok() && len(s.Dimensions) == 0
}

// Dim returns the dimension of the given axis. Negative axes count from the end: -1 is the last axis.
// It panics if the axis is out of range.
func (s Shape) Dim(axis int) expr.Expr {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out of bounds for shape %s", axis, s)
	}
	return s.Dimensions[adjusted]
}

// Clone returns a copy of the shape, with its own Dimensions slice.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: append([]expr.Expr(nil), s.Dimensions...)}
}

// WithDType returns a copy of the shape with a different dtype.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}

// Equal returns whether the shapes have the same dtype and structurally equal dimensions.
func (s Shape) Equal(other Shape) bool {
	if s.DType != other.DType || s.Rank() != other.Rank() {
		return false
	}
	for ii, dim := range s.Dimensions {
		if !DimsEqual(dim, other.Dimensions[ii]) {
			return false
		}
	}
	return true
}

// DimsEqual returns whether two dimensions are provably equal: after simplification they are the
// same literal, or they are the same symbolic product (e.g. n*2 and 2*n).
func DimsEqual(a, b expr.Expr) bool {
	a, b = expr.Simplify(a), expr.Simplify(b)
	if expr.Equal(a, b) {
		return true
	}
	return factorize(a).equal(factorize(b))
}

// IsOne returns whether the dimension is the literal 1.
func IsOne(dim expr.Expr) bool {
	return expr.IsConst(dim, 1)
}

// String implements fmt.Stringer, e.g.: "(Float32)[n 4]".
func (s Shape) String() string {
	if s.IsScalar() {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		parts[ii] = dim.String()
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of the shape, as a simplified expression.
func (s Shape) Size() expr.Expr {
	var size expr.Expr = expr.MakeInt(dtypes.Int64, 1)
	for _, dim := range s.Dimensions {
		size = expr.Simplify(expr.Times(size, dim))
	}
	return size
}

// Concrete evaluates the dimensions under env.
func (s Shape) Concrete(env expr.Env) ([]int, error) {
	dims := make([]int, s.Rank())
	evaluator := expr.NewIdxEvaluator(env)
	for axis, dim := range s.Dimensions {
		v, err := evaluator.Eval(dim)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating axis #%d of shape %s", axis, s)
		}
		if v < 0 {
			return nil, errors.Errorf("axis #%d of shape %s evaluated to a negative dimension %d", axis, s, v)
		}
		dims[axis] = int(v)
	}
	return dims, nil
}

// ConcreteSize evaluates the number of elements of the shape under env.
func (s Shape) ConcreteSize(env expr.Env) (int, error) {
	dims, err := s.Concrete(env)
	if err != nil {
		return 0, err
	}
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	return size, nil
}

// Memory returns the number of bytes used by the shape under env.
func (s Shape) Memory(env expr.Env) (uintptr, error) {
	size, err := s.ConcreteSize(env)
	if err != nil {
		return 0, err
	}
	return uintptr(size) * s.DType.Memory(), nil
}
