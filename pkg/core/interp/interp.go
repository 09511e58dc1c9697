// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interp is a reference executor of lowered kernels.
//
// It walks the statement tree of each graph.Kernel, with every value held as a float64 rounded
// (or wrapped around, for integers) to the dtype of the expression that produced it. It is slow,
// and it is meant to check lowering results against hand-computed values, not to be fast.
//
// Example:
//
//	c := graph.New()
//	x := must.M1(c.Placeholder(dtypes.Float32, "n", "m"))
//	sum := must.M1(c.Sum(x, nil, 1))
//	outputs, err := interp.New().Run(must.M1(c.Schedule(sum)), map[graph.NodeId]*interp.Buffer{
//		x.ID: interp.Iota(3, 4),
//	})
//
// The values of the symbolic dimensions ("n" and "m" above) are taken from the dimensions of
// the input buffers.
package interp

import (
	"os"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/internal/workerspool"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/gomlx/tensorir/pkg/core/stage"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// TENSORIR_PARALLELISM is the environment variable with the default number of kernels run in
// parallel: 0 runs them sequentially and -1 doesn't limit them.
const TENSORIR_PARALLELISM = "TENSORIR_PARALLELISM"

// Interpreter runs kernels on Buffers. It can be used concurrently.
type Interpreter struct {
	pool *workerspool.Pool
}

// New returns an Interpreter that runs up to runtime.NumCPU() kernels in parallel, or the
// value of the TENSORIR_PARALLELISM environment variable if it is set.
func New() *Interpreter {
	pool := workerspool.NewDefault()
	if config, found := os.LookupEnv(TENSORIR_PARALLELISM); found {
		parallelism, err := strconv.Atoi(config)
		if err != nil {
			klog.Warningf("ignoring invalid %s=%q: %v", TENSORIR_PARALLELISM, config, err)
		} else {
			pool.SetMaxParallelism(parallelism)
		}
	}
	return &Interpreter{pool: pool}
}

// WithParallelism sets the number of kernels run in parallel: 0 runs them sequentially and -1
// doesn't limit them. It returns the Interpreter itself, so calls can be chained.
//
// It must not be called while Run is executing.
func (it *Interpreter) WithParallelism(parallelism int) *Interpreter {
	it.pool.SetMaxParallelism(parallelism)
	return it
}

// Parallelism returns the number of kernels run in parallel.
func (it *Interpreter) Parallelism() int {
	return it.pool.MaxParallelism()
}

// Run executes the kernels of the schedule, and returns one Buffer per output, in the order of
// Schedule.Outputs.
//
// inputs must hold a Buffer for every placeholder read by the kernels.
func (it *Interpreter) Run(s *graph.Schedule, inputs map[graph.NodeId]*Buffer) ([]*Buffer, error) {
	var kernels []*graph.Kernel
	err := exceptions.TryCatch[error](func() { kernels = s.Kernels() })
	if err != nil {
		return nil, errors.WithMessagef(err, "lowering schedule %s", s.Name())
	}
	return it.RunKernels(kernels, inputs)
}

// RunKernels executes the given kernels, and returns one Buffer per kernel.
func (it *Interpreter) RunKernels(kernels []*graph.Kernel, inputs map[graph.NodeId]*Buffer) ([]*Buffer, error) {
	env, err := bindInputs(kernels, inputs)
	if err != nil {
		return nil, err
	}
	if klog.V(1).Enabled() {
		klog.Infof("interp: running %d kernels with parallelism %d, dimensions {%s}",
			len(kernels), it.Parallelism(), shapes.EnvKey(env))
	}
	outputs := make([]*Buffer, len(kernels))
	errs := make([]error, len(kernels))
	it.pool.ForEach(len(kernels), func(ii int) {
		outputs[ii], errs[ii] = runKernel(kernels[ii], env, inputs)
	})
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return outputs, nil
}

// bindInputs checks the inputs of the kernels, and returns the values of the symbolic dimensions.
func bindInputs(kernels []*graph.Kernel, inputs map[graph.NodeId]*Buffer) (expr.Env, error) {
	env := make(expr.Env)
	for _, k := range kernels {
		for _, leaf := range k.Leaves() {
			buf, found := inputs[leaf.ID]
			if !found || buf == nil {
				return nil, errors.Errorf("kernel %s: missing input buffer for %s", k.Name, leaf)
			}
			if len(buf.Data) != size(buf.Dims) {
				return nil, errors.Errorf("kernel %s: input buffer for %s has %d values for dimensions %v",
					k.Name, leaf, len(buf.Data), buf.Dims)
			}
			var err error
			env, err = shapes.Bind(env, leaf.Shape, buf.Dims)
			if err != nil {
				return nil, errors.WithMessagef(err, "kernel %s: input %s", k.Name, leaf)
			}
		}
	}
	return env, nil
}

// runKernel allocates the output of the kernel and executes it.
func runKernel(k *graph.Kernel, env expr.Env, inputs map[graph.NodeId]*Buffer) (*Buffer, error) {
	strides, err := k.Strides(env)
	if err != nil {
		return nil, err
	}
	dims, err := k.Output.Shape.Concrete(env)
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %s", k.Name)
	}
	outputStrides, err := k.OutputStrides(env)
	if err != nil {
		return nil, err
	}

	m := &machine{
		kernel:  k.Name,
		env:     env,
		scalars: make(map[string]float64),
		buffers: make(map[string][]float64),
	}
	for ii, access := range k.Accesses {
		leaf := access.Leaf.BufferName()
		m.buffers[leaf] = inputs[access.Leaf.ID].Data
		m.buffers[stage.StridesBufferName(leaf, access.Slot)] = asFloats(strides[ii].Values)
		if access.WithOffset {
			m.scalars[stage.OffsetVarName(leaf, access.Slot)] = float64(strides[ii].Offset)
		}
	}
	output := NewBuffer(dims...)
	m.buffers[k.Output.BufferName()] = output.Data
	m.buffers[k.OutputStridesName()] = asFloats(outputStrides)

	err = exceptions.TryCatch[error](func() { m.exec(k.Stmt, newScope(nil)) })
	if err != nil {
		return nil, errors.WithMessagef(err, "running kernel %s", k.Name)
	}
	klog.V(2).Infof("interp: kernel %s computed %s", k.Name, output)
	return output, nil
}

func asFloats(values []int64) []float64 {
	return xslices.Map(values, func(v int64) float64 { return float64(v) })
}
