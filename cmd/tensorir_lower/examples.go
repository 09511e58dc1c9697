// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/core/shapes"
)

// example builds a small graph and returns the tensors to lower.
type example struct {
	description string
	build       func(c *graph.Context) ([]graph.Tensor, error)
}

var examples = map[string]example{
	"sum": {
		description: "x[n, m] summed over its last axis",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, "n", "m")
			if err != nil {
				return nil, err
			}
			sum, err := c.Sum(x, nil, -1)
			return []graph.Tensor{sum}, err
		},
	},

	"broadcast": {
		description: "x[n, m] + bias[m], followed by tanh",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, "n", "m")
			if err != nil {
				return nil, err
			}
			bias, err := c.Placeholder(dtypes.Float32, "m")
			if err != nil {
				return nil, err
			}
			sum, err := c.Add(x, bias)
			if err != nil {
				return nil, err
			}
			activation, err := c.Tanh(sum)
			return []graph.Tensor{activation}, err
		},
	},

	"slice": {
		description: "exp of every other column of x[n, m], skipping the first row",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, "n", "m")
			if err != nil {
				return nil, err
			}
			sliced, err := c.Slice(x, shapes.Range(1, "n"), shapes.RangeStep(0, "m", 2))
			if err != nil {
				return nil, err
			}
			e, err := c.Exp(sliced)
			return []graph.Tensor{e}, err
		},
	},

	"reshape": {
		description: "x[2, 3, m] reshaped to [6, m] and negated",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, 2, 3, "m")
			if err != nil {
				return nil, err
			}
			reshaped, err := c.Reshape(x, 6, "m")
			if err != nil {
				return nil, err
			}
			neg, err := c.Neg(reshaped)
			return []graph.Tensor{neg}, err
		},
	},

	"max": {
		description: "exp(x[n, m] - max(x, axis=1)), the numerator of a softmax",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, "n", "m")
			if err != nil {
				return nil, err
			}
			maximum, err := c.ReduceMax(x, 1)
			if err != nil {
				return nil, err
			}
			maximum, err = c.Reshape(maximum, "n", 1)
			if err != nil {
				return nil, err
			}
			shifted, err := c.Sub(x, maximum)
			if err != nil {
				return nil, err
			}
			e, err := c.Exp(shifted)
			return []graph.Tensor{maximum, e}, err
		},
	},

	"argmax": {
		description: "the index of the largest element of each row of x[n, m]",
		build: func(c *graph.Context) ([]graph.Tensor, error) {
			x, err := c.Placeholder(dtypes.Float32, "n", "m")
			if err != nil {
				return nil, err
			}
			argMax, err := c.ArgMax(x, 1)
			return []graph.Tensor{argMax}, err
		},
	},
}

// exampleNames returns the sorted names of the examples.
func exampleNames() []string {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func exampleNamesList() string {
	return strings.Join(exampleNames(), ", ")
}
