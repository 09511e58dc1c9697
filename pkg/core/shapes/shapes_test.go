// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestShape(t *testing.T) {
	var invalid Shape
	require.False(t, invalid.Ok())

	scalar := Make(dtypes.Float64)
	require.True(t, scalar.IsScalar())
	require.Equal(t, 0, scalar.Rank())
	require.Equal(t, "(Float64)", scalar.String())
	require.True(t, expr.IsConst(scalar.Size(), 1))

	s := Make(dtypes.Float32, "n", 4)
	require.Equal(t, 2, s.Rank())
	require.Equal(t, "(Float32)[n 4]", s.String())
	require.Equal(t, "(n * 4)", s.Size().String())
	require.True(t, expr.IsConst(s.Dim(-1), 4))
	require.Equal(t, "n", s.Dim(0).String())
	require.Panics(t, func() { _ = s.Dim(2) })
	require.Panics(t, func() { _ = s.Dim(-3) })
	require.Panics(t, func() { Make(dtypes.Float32, -1) })

	dims, err := s.Concrete(expr.Env{"n": 3})
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, dims)
	size, err := s.ConcreteSize(expr.Env{"n": 3})
	require.NoError(t, err)
	require.Equal(t, 12, size)
	memory, err := s.Memory(expr.Env{"n": 3})
	require.NoError(t, err)
	require.Equal(t, uintptr(48), memory)
	_, err = s.Concrete(nil)
	require.Error(t, err)

	require.True(t, s.Equal(Make(dtypes.Float32, "n", 4)))
	require.False(t, s.Equal(Make(dtypes.Float64, "n", 4)))
	require.False(t, s.Equal(Make(dtypes.Float32, "m", 4)))
	require.Equal(t, dtypes.Int32, s.WithDType(dtypes.Int32).DType)
	require.Equal(t, dtypes.Float32, s.DType, "WithDType must not change the original")
}

func TestDimsEqual(t *testing.T) {
	require.True(t, DimsEqual(expr.MakeInt(dtypes.Int64, 6), expr.MakeMul(2, 3)))
	require.True(t, DimsEqual(expr.MakeMul(expr.MakeMul("n", 2), "m"), expr.MakeMul("n", expr.MakeMul(2, "m"))))
	require.False(t, DimsEqual(expr.MakeVar("n"), expr.MakeVar("m")))
	require.False(t, DimsEqual(expr.MakeMul("n", 2), expr.MakeMul("n", 3)))
}

func TestBroadcast(t *testing.T) {
	testCases := []struct {
		lhs, rhs Shape
		want     string
	}{
		{Make(dtypes.Float32, 1, 4), Make(dtypes.Float32, 3, 4), "(Float32)[3 4]"},
		{Make(dtypes.Float32, "n", 1), Make(dtypes.Float32, 5), "(Float32)[n 5]"},
		{Make(dtypes.Float32, 3), Make(dtypes.Float32, 2, 3), "(Float32)[2 3]"},
		{Make(dtypes.Float32), Make(dtypes.Float32, 2, 3), "(Float32)[2 3]"},
		{Make(dtypes.Float32, "n", "m"), Make(dtypes.Float32, "n", "m"), "(Float32)[n m]"},
	}
	for _, tc := range testCases {
		got, err := Broadcast("Add", tc.lhs, tc.rhs)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String())
	}

	_, err := Broadcast("Add", Make(dtypes.Float32, 2, 3), Make(dtypes.Float32, 3, 2))
	require.Error(t, err)
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "Add", shapeErr.Op)
	assert.Len(t, shapeErr.Shapes, 2)
	assert.Contains(t, err.Error(), "cannot be broadcast")

	_, err = Broadcast("Mul", Make(dtypes.Float32, 2), Make(dtypes.Float64, 2))
	require.True(t, IsShapeError(err))

	// Symbolic dimensions that can't be proven equal don't broadcast.
	_, err = Broadcast("Add", Make(dtypes.Float32, "n", 4), Make(dtypes.Float32, "m", 4))
	require.True(t, IsShapeError(err))
}

func TestReduce(t *testing.T) {
	operand := Make(dtypes.Float32, 2, 3, 4)
	output, axes, err := Reduce("Sum", operand, []int{2, 0, -1, 0})
	require.NoError(t, err)
	assert.Equal(t, "(Float32)[3]", output.String())
	assert.Equal(t, []int{0, 2}, axes)

	output, axes, err = Reduce("Sum", operand, nil)
	require.NoError(t, err)
	assert.True(t, output.IsScalar())
	assert.Equal(t, []int{0, 1, 2}, axes)

	_, _, err = Reduce("Sum", operand, []int{3})
	require.True(t, IsShapeError(err))
	_, _, err = Reduce("Sum", operand, []int{-4})
	require.True(t, IsShapeError(err))
}

func TestSlice(t *testing.T) {
	operand := Make(dtypes.Float32, 2, 5, 10)
	output, resolved, err := Slice(operand, []SliceSpec{All(), RangeStep(1, 5, 2), RangeStep(2, 9, 2)})
	require.NoError(t, err)
	assert.Equal(t, "(Float32)[2 2 4]", output.String())
	require.Len(t, resolved, 3)
	for axis, want := range [][3]int64{{0, 2, 1}, {1, 5, 2}, {2, 9, 2}} {
		assert.True(t, expr.IsConst(resolved[axis].Start, want[0]), "axis %d start", axis)
		assert.True(t, expr.IsConst(resolved[axis].Stop, want[1]), "axis %d stop", axis)
		assert.True(t, expr.IsConst(resolved[axis].Step, want[2]), "axis %d step", axis)
	}

	// Negative bounds and missing trailing specs.
	output, resolved, err = Slice(Make(dtypes.Float32, 10, 3), []SliceSpec{Range(-3, -1)})
	require.NoError(t, err)
	assert.Equal(t, "(Float32)[2 3]", output.String())
	assert.True(t, expr.IsConst(resolved[0].Start, 7))
	assert.True(t, expr.IsConst(resolved[0].Stop, 9))

	output, _, err = Slice(Make(dtypes.Float32, 10), []SliceSpec{Index(3)})
	require.NoError(t, err)
	assert.Equal(t, "(Float32)[1]", output.String())

	// Symbolic dimensions.
	output, _, err = Slice(Make(dtypes.Float32, "n"), []SliceSpec{RangeStep(1, "n", 2)})
	require.NoError(t, err)
	dims, err := output.Concrete(expr.Env{"n": 9})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, dims)

	// All invalid axes are reported.
	_, _, err = Slice(operand, []SliceSpec{All(), RangeStep(0, 5, 0), Range(0, 11)})
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Len(t, multierr.Errors(shapeErr.Err), 2)

	_, _, err = Slice(operand, []SliceSpec{All(), All(), All(), All()})
	require.True(t, IsShapeError(err))
	_, _, err = Slice(operand, []SliceSpec{Range(2, 1)})
	require.True(t, IsShapeError(err))
}

func TestReshape(t *testing.T) {
	operand := Make(dtypes.Float32, 2, 3, 4)
	output, groups, err := Reshape(operand, 6, 4)
	require.NoError(t, err)
	assert.Equal(t, "(Float32)[6 4]", output.String())
	assert.Equal(t, []ReshapeGroup{{From: []int{0, 1}, To: []int{0}}, {From: []int{2}, To: []int{1}}}, groups)

	_, _, err = Reshape(operand, 4, 6)
	require.Error(t, err)
	require.True(t, IsShapeError(err), "want a *ShapeError, got %v", err)

	_, groups, err = Reshape(operand, 2, 3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []ReshapeGroup{
		{From: []int{0}, To: []int{0}},
		{From: []int{1}, To: []int{1}},
		{From: []int{2}, To: []int{2, 3}},
	}, groups)

	_, groups, err = Reshape(Make(dtypes.Float32, 2, 1, 3), 6)
	require.NoError(t, err)
	assert.Equal(t, []ReshapeGroup{{From: []int{0, 1, 2}, To: []int{0}}}, groups)

	_, groups, err = Reshape(Make(dtypes.Float32, 6), 1, 6, 1)
	require.NoError(t, err)
	assert.Equal(t, []ReshapeGroup{{To: []int{0}}, {From: []int{0}, To: []int{1}}, {To: []int{2}}}, groups)

	_, groups, err = Reshape(Make(dtypes.Float32, "n", 2, 2), expr.MakeMul(2, "n"), 2)
	require.NoError(t, err)
	assert.Equal(t, []ReshapeGroup{{From: []int{0, 1}, To: []int{0}}, {From: []int{2}, To: []int{1}}}, groups)

	for _, dims := range [][]any{{7}, {6, 2}, {3, 2}} {
		_, _, err = Reshape(Make(dtypes.Float32, 2, 3), dims...)
		require.True(t, IsShapeError(err), "reshape to %v", dims)
	}
}

func TestSameProduct(t *testing.T) {
	assert.True(t, SameProduct(expr.MakeMul("n", "m"), expr.MakeMul("m", "n")))
	assert.True(t, SameProduct(expr.AsExpr(12), expr.MakeMul(expr.MakeMul(2, 3), 2)))
	assert.True(t, SameProduct(expr.MakeMul(expr.MakeMul("n", 2), "m"), expr.MakeMul(expr.MakeMul("m", "n"), 2)))
	assert.True(t, SameProduct(expr.AsExpr(0), expr.MakeMul(0, "n")))
	assert.False(t, SameProduct(expr.MakeVar("n"), expr.MakeMul("n", 2)))
	assert.False(t, SameProduct(expr.MakeVar("n"), expr.MakeVar("m")))
	assert.False(t, SameProduct(expr.AsExpr(0), expr.MakeVar("n")))
}

func TestBind(t *testing.T) {
	pattern := Make(dtypes.Float32, "n", 4, expr.MakeMul("n", 2))
	env, err := Bind(nil, pattern, []int{3, 4, 6})
	require.NoError(t, err)
	assert.Equal(t, expr.Env{"n": 3}, env)

	env, err = Bind(expr.Env{"m": 7}, Make(dtypes.Float32, "n"), []int{2})
	require.NoError(t, err)
	assert.Equal(t, expr.Env{"m": 7, "n": 2}, env)

	_, err = Bind(nil, Make(dtypes.Float32, "n", "n"), []int{2, 3})
	require.ErrorContains(t, err, "conflicting")
	_, err = Bind(nil, pattern, []int{3, 5, 6})
	require.Error(t, err)
	_, err = Bind(nil, pattern, []int{3, 4, 7})
	require.Error(t, err)
	_, err = Bind(nil, pattern, []int{3, 4})
	require.ErrorContains(t, err, "rank mismatch")

	merged := expr.Env{"a": 1}
	require.NoError(t, MergeEnv(merged, expr.Env{"b": 2, "a": 1}))
	require.Error(t, MergeEnv(merged, expr.Env{"a": 3}))
	assert.Equal(t, "a=1,b=2", EnvKey(merged))
	assert.Equal(t, "", EnvKey(nil))
}

func TestIter(t *testing.T) {
	var collect [][]int
	var counter int
	for flatIdx, indices := range Iter([]int{3, 2}) {
		collect = append(collect, slices.Clone(indices))
		require.Equal(t, counter, flatIdx)
		counter++
	}
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}, collect)

	counter = 0
	for _, indices := range Iter(nil) {
		assert.Empty(t, indices)
		counter++
	}
	assert.Equal(t, 1, counter)

	for range Iter([]int{2, 0}) {
		t.Fatal("zero-sized dimensions must not yield")
	}

	// Early termination.
	counter = 0
	for range Iter([]int{10, 10}) {
		counter++
		if counter == 5 {
			break
		}
	}
	assert.Equal(t, 5, counter)
}
