// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interp

import (
	"math"
	"runtime"
	"testing"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inputs = map[graph.NodeId]*Buffer

// run schedules the outputs and runs them sequentially.
func run(t *testing.T, c *graph.Context, in inputs, outputs ...graph.Tensor) []*Buffer {
	t.Helper()
	s := must.M1(c.Schedule(outputs...))
	results, err := New().WithParallelism(0).Run(s, in)
	require.NoError(t, err)
	require.Len(t, results, len(s.Outputs()))
	return results
}

func TestRunSum(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, "n", "m"))
	sum := must.M1(c.Sum(a, nil, 1))
	got := run(t, c, inputs{a.ID: Iota(3, 4)}, sum)[0]
	assert.Equal(t, []int{3}, got.Dims)
	assert.Equal(t, []float64{6, 22, 38}, got.Data)

	total := must.M1(c.Sum(a, 1.5))
	got = run(t, c, inputs{a.ID: Iota(2, 3)}, total)[0]
	assert.Empty(t, got.Dims)
	assert.Equal(t, 16.5, got.At())
}

func TestRunBroadcast(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, 1, 4))
	b := must.M1(c.Placeholder(dtypes.Float32, 3, 4))
	row := must.M1(c.Placeholder(dtypes.Float32, 4))
	sum := must.M1(c.Add(a, b))
	diff := must.M1(c.Sub(b, row))
	in := inputs{
		a.ID:   must.M1(FromData([]float64{10, 20, 30, 40}, 1, 4)),
		b.ID:   Iota(3, 4),
		row.ID: must.M1(FromData([]float64{1, 2, 3, 4}, 4)),
	}
	results := run(t, c, in, sum, diff)
	for i := range 3 {
		for j := range 4 {
			assert.Equal(t, float64(10*(j+1)+4*i+j), results[0].At(i, j), "sum at (%d, %d)", i, j)
			assert.Equal(t, float64(4*i+j-(j+1)), results[1].At(i, j), "diff at (%d, %d)", i, j)
		}
	}
}

func TestRunViews(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, 2, 5, 10))
	sliced := must.M1(c.Slice(a, shapes.All(), shapes.RangeStep(1, 5, 2), shapes.RangeStep(2, 9, 2)))
	neg := must.M1(c.Neg(sliced))
	again := must.M1(c.Slice(sliced, shapes.Range(1, 2), shapes.Range(1, 2), shapes.Range(1, 4)))
	results := run(t, c, inputs{a.ID: Iota(2, 5, 10)}, neg, again)

	assert.Equal(t, []int{2, 2, 4}, results[0].Dims)
	for i0 := range 2 {
		for i1 := range 2 {
			for i2 := range 4 {
				want := -float64(i0*50 + (1+2*i1)*10 + 2 + 2*i2)
				assert.Equal(t, want, results[0].At(i0, i1, i2))
			}
		}
	}
	// Element (1, 1, 1+k) of the first slice is element (1, 3, 4+2k) of a.
	assert.Equal(t, []float64{84, 86, 88}, results[1].Data)

	b := must.M1(c.Placeholder(dtypes.Float32, 2, 3, 4))
	reshaped := must.M1(c.Neg(must.M1(c.Reshape(b, 6, 4))))
	got := run(t, c, inputs{b.ID: Iota(2, 3, 4)}, reshaped)[0]
	assert.Equal(t, []int{6, 4}, got.Dims)
	for ii, v := range got.Data {
		require.Equal(t, -float64(ii), v)
	}
}

func TestRunReshapeOfReduction(t *testing.T) {
	c := graph.New()
	x := must.M1(c.Placeholder(dtypes.Float32, "n", "m", "k"))
	rows := must.M1(c.Sum(x, nil, 2))
	flat := must.M1(c.Reshape(rows, expr.MakeMul("n", "m")))
	got := run(t, c, inputs{x.ID: Iota(2, 3, 4)}, flat)[0]
	assert.Equal(t, []int{6}, got.Dims)
	assert.Equal(t, []float64{6, 22, 38, 54, 70, 86}, got.Data)
}

func TestRunReductions(t *testing.T) {
	c := graph.New()
	x := must.M1(c.Placeholder(dtypes.Float32, 2, 3))
	ints := must.M1(c.Placeholder(dtypes.Int32, 2, 3))
	argMax := must.M1(c.ArgMax(x, 1))
	argMin := must.M1(c.ArgMin(x, 0))
	argMinAsFloat := must.M1(c.Cast(argMin, dtypes.Float32))
	maximum := must.M1(c.ReduceMax(x))
	prod := must.M1(c.Prod(ints, 1))
	minimum := must.M1(c.ReduceMin(ints, 0))

	in := inputs{
		x.ID:    must.M1(FromData([]float64{1, 5, 3, 9, 2, 9}, 2, 3)),
		ints.ID: must.M1(FromData([]float64{1, 2, 3, 4, 5, 6}, 2, 3)),
	}
	results := run(t, c, in, argMax, argMin, argMinAsFloat, maximum, prod, minimum)
	// Ties keep the first index.
	assert.Equal(t, []float64{1, 0}, results[0].Data)
	assert.Equal(t, []float64{0, 1, 0}, results[1].Data)
	assert.Equal(t, []float64{0, 1, 0}, results[2].Data)
	assert.Equal(t, []float64{9}, results[3].Data)
	assert.Equal(t, []float64{6, 120}, results[4].Data)
	assert.Equal(t, []float64{1, 2, 3}, results[5].Data)
}

func TestRunNestedReductions(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, 2, 3, 4))
	inner := must.M1(c.Sum(a, nil, 1))
	outer := must.M1(c.ReduceMax(inner, 0))
	// inner[i, k] = 36*i + 12 + 3*k, maximal at i=1.
	got := run(t, c, inputs{a.ID: Iota(2, 3, 4)}, outer)[0]
	assert.Equal(t, []float64{48, 51, 54, 57}, got.Data)
}

func TestRunElementWise(t *testing.T) {
	c := graph.New()
	x := must.M1(c.Placeholder(dtypes.Float32, "n"))
	sine := must.M1(c.Sin(x))
	twice := must.M1(c.Add(sine, sine))
	sigmoid := must.M1(c.Sigmoid(x))
	exponent := must.M1(c.Placeholder(dtypes.Float32, "n"))
	squares := must.M1(c.Pow(x, exponent))
	truncated := must.M1(c.Cast(must.M1(c.Neg(x)), dtypes.Int32))

	two := must.M1(FromData([]float64{2, 2, 2, 2}, 4))
	results := run(t, c, inputs{x.ID: Iota(4), exponent.ID: two}, twice, sigmoid, squares, truncated)
	for ii := range 4 {
		v := float64(ii)
		assert.InDelta(t, 2*math.Sin(v), results[0].Data[ii], 1e-6)
		assert.InDelta(t, 1/(1+math.Exp(-v)), results[1].Data[ii], 1e-6)
	}
	assert.Equal(t, []float64{0, 1, 4, 9}, results[2].Data)
	assert.Equal(t, []float64{0, -1, -2, -3}, results[3].Data)
}

func TestRunIntegerArithmetic(t *testing.T) {
	c := graph.New()
	x := must.M1(c.Placeholder(dtypes.Int32, 3))
	y := must.M1(c.Placeholder(dtypes.Int32, 3))
	quotient := must.M1(c.Div(x, y))
	remainder := must.M1(c.Rem(x, y))
	in := inputs{
		x.ID: must.M1(FromData([]float64{7, -7, 9}, 3)),
		y.ID: must.M1(FromData([]float64{2, 2, -4}, 3)),
	}
	results := run(t, c, in, quotient, remainder)
	// Truncated toward zero, and the remainder has the sign of the dividend.
	assert.Equal(t, []float64{3, -3, -2}, results[0].Data)
	assert.Equal(t, []float64{1, -1, 1}, results[1].Data)

	in[y.ID] = must.M1(FromData([]float64{1, 0, 1}, 3))
	_, err := New().Run(must.M1(c.Schedule(quotient)), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRunParallel(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, "n", "m"))
	b := must.M1(c.Placeholder(dtypes.Float32, "n"))
	sum := must.M1(c.Sum(a, nil, 1))
	result := must.M1(c.Add(sum, b))
	exps := must.M1(c.Exp(b))
	s := must.M1(c.Schedule(result, sum, exps))
	in := inputs{a.ID: Iota(3, 4), b.ID: must.M1(FromData([]float64{1, 1, 1}, 3))}

	for _, parallelism := range []int{0, 2, -1} {
		results, err := New().WithParallelism(parallelism).Run(s, in)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []float64{6, 22, 38}, results[0].Data)
		assert.Equal(t, []float64{7, 23, 39}, results[1].Data)
		assert.InDelta(t, math.E, results[2].Data[0], 1e-6)
	}
}

func TestRunErrors(t *testing.T) {
	c := graph.New()
	a := must.M1(c.Placeholder(dtypes.Float32, "n", "m"))
	b := must.M1(c.Placeholder(dtypes.Float32, "n"))
	result := must.M1(c.Add(must.M1(c.Sum(a, nil, 1)), b))
	s := must.M1(c.Schedule(result))

	_, err := New().Run(s, inputs{a.ID: Iota(3, 4)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing input")

	// "n" can't be both 3 and 5.
	_, err = New().Run(s, inputs{a.ID: Iota(3, 4), b.ID: Iota(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting")

	_, err = New().Run(s, inputs{a.ID: {Dims: []int{3, 4}, Data: make([]float64, 10)}, b.ID: Iota(3)})
	require.Error(t, err)

	_, err = FromData([]float64{1, 2}, 3)
	require.Error(t, err)
}

func TestParallelismConfig(t *testing.T) {
	t.Setenv(TENSORIR_PARALLELISM, "0")
	assert.Equal(t, 0, New().Parallelism())
	t.Setenv(TENSORIR_PARALLELISM, "not-a-number")
	assert.Equal(t, runtime.NumCPU(), New().Parallelism())
	assert.Equal(t, -1, New().WithParallelism(-1).Parallelism())
}

func TestConvert(t *testing.T) {
	assert.Equal(t, -56.0, convert(dtypes.Int8, 200))
	assert.Equal(t, -1.0, convert(dtypes.Int32, -1.7))
	assert.Equal(t, 255.0, convert(dtypes.Uint8, -1))
	assert.Equal(t, 44.0, convert(dtypes.Uint8, 300))
	assert.Equal(t, 1.0, convert(dtypes.Bool, 0.5))
	assert.Equal(t, float64(float32(0.1)), convert(dtypes.Float32, 0.1))
	assert.Equal(t, 1.0, convert(dtypes.Float16, 1.0001))
	assert.Equal(t, 0.1, convert(dtypes.Float64, 0.1))
}

func TestBuffer(t *testing.T) {
	b := Iota(2, 3)
	assert.Equal(t, 6, b.Size())
	assert.Equal(t, 5.0, b.At(1, 2))
	assert.Equal(t, "Buffer[2 3]{{0, 1, 2}, {3, 4, 5}}", b.String())
	assert.Equal(t, "Buffer[](0)", NewBuffer().String())
	assert.Panics(t, func() { b.At(2, 0) })
	assert.Panics(t, func() { b.At(1) })
}
