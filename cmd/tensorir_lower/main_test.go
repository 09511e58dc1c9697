// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/core/interp"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDims(t *testing.T) {
	env := must.M1(parseDims([]string{"n=3", "m=4"}))
	assert.Equal(t, expr.Env{"n": 3, "m": 4}, env)

	for _, bad := range []string{"n", "=3", "n=x", "n=-1"} {
		_, err := parseDims([]string{bad})
		assert.Error(t, err, "dims %q", bad)
	}
}

func TestExamples(t *testing.T) {
	env := expr.Env{"n": 3, "m": 4}
	for _, name := range exampleNames() {
		t.Run(name, func(t *testing.T) {
			c := graph.New()
			outputs, err := examples[name].build(c)
			require.NoError(t, err)
			kernels := must.M1(c.Schedule(outputs...)).WithName(name).Kernels()
			require.Len(t, kernels, len(outputs))

			table := must.M1(buffersTable(kernels, env))
			assert.Contains(t, table.Render(), "output of "+name)

			inputs := must.M1(iotaInputs(kernels, env))
			assert.Len(t, inputs, len(leaves(kernels)))
			results, err := interp.New().RunKernels(kernels, inputs)
			require.NoError(t, err)
			require.Len(t, results, len(kernels))
		})
	}
}

func TestExampleResults(t *testing.T) {
	env := expr.Env{"n": 3, "m": 4}
	runExample := func(name string) []*interp.Buffer {
		c := graph.New()
		outputs := must.M1(examples[name].build(c))
		kernels := must.M1(c.Schedule(outputs...)).Kernels()
		return must.M1(interp.New().RunKernels(kernels, must.M1(iotaInputs(kernels, env))))
	}

	assert.Equal(t, []float64{6, 22, 38}, runExample("sum")[0].Data)
	assert.Equal(t, []float64{3, 3, 3}, runExample("argmax")[0].Data)

	results := runExample("max")
	assert.Equal(t, []int{3, 1}, results[0].Dims)
	assert.Equal(t, []float64{3, 7, 11}, results[0].Data)
	// The last element of each row is the maximum: exp(0) = 1.
	assert.Equal(t, 1.0, results[1].At(2, 3))

	// Rows 1..n of columns 0 and 2.
	sliced := runExample("slice")[0]
	assert.Equal(t, []int{2, 2}, sliced.Dims)

	neg := runExample("reshape")[0]
	assert.Equal(t, []int{6, 4}, neg.Dims)
	assert.Equal(t, -23.0, neg.At(5, 3))
}
