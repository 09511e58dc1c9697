// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/stmt"
	"github.com/gomlx/tensorir/pkg/support/sets"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Schedule of the computation of a set of output tensors: each output is computed by its own
// kernel, a loop nest over the axes of the output with all the intermediate values inlined.
type Schedule struct {
	c       *Context
	name    string
	outputs []*Node
}

// Schedule returns the schedule to compute the given outputs. Outputs are ordered by id (so
// operands come before the tensors that use them), and repeated outputs are ignored.
//
// Placeholders can't be outputs: they are the inputs of the kernels.
func (c *Context) Schedule(outputs ...Tensor) (*Schedule, error) {
	if len(outputs) == 0 {
		return nil, errors.New("Schedule: no outputs given")
	}
	nodes, err := c.nodesOf("Schedule", outputs...)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.IsLeaf() {
			return nil, errors.Errorf("Schedule: placeholder %s can't be an output", n)
		}
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return int(a.id) - int(b.id) })
	nodes = slices.CompactFunc(nodes, func(a, b *Node) bool { return a.id == b.id })
	return &Schedule{
		c:       c,
		name:    "kernel_" + uuid.NewString()[:8],
		outputs: nodes,
	}, nil
}

// WithName sets the prefix of the names of the kernels. The default is "kernel_" followed by a
// random suffix. It returns the Schedule itself, so calls can be chained.
func (s *Schedule) WithName(name string) *Schedule {
	s.name = name
	return s
}

// Name returns the prefix of the names of the kernels.
func (s *Schedule) Name() string { return s.name }

// Outputs returns the output tensors, in the order of their kernels.
func (s *Schedule) Outputs() []Tensor {
	tensors := make([]Tensor, len(s.outputs))
	for ii, n := range s.outputs {
		tensors[ii] = s.c.tensor(n)
	}
	return tensors
}

// Lower returns one statement tree per output, in the order of Outputs.
func (s *Schedule) Lower() []stmt.Stmt {
	kernels := s.Kernels()
	stmts := make([]stmt.Stmt, len(kernels))
	for ii, k := range kernels {
		stmts[ii] = k.Stmt
	}
	return stmts
}

// Kernels lowers each output and returns its Kernel, in the order of Outputs.
func (s *Schedule) Kernels() []*Kernel {
	kernels := make([]*Kernel, len(s.outputs))
	for ii, n := range s.outputs {
		st, accesses := s.c.lowerRoot(n)
		kernels[ii] = &Kernel{
			Name:     fmt.Sprintf("%s_%d", s.name, n.id),
			Output:   s.c.tensor(n),
			Stmt:     st,
			Accesses: accesses,
			strides:  s.c.stridesFn(n),
		}
		if klog.V(1).Enabled() {
			count, depth := stmt.CountLoops(st)
			klog.Infof("%s: lowered %s to %d loops (depth %d), %d leaf accesses",
				kernels[ii].Name, n, count, depth, len(accesses))
		}
		if klog.V(2).Enabled() {
			klog.Infof("%s:\n%s", kernels[ii].Name, st)
		}
	}
	return kernels
}

// Kernel is the lowered computation of one output tensor.
//
// To run it, the caller binds:
//
//   - the symbolic dimensions of the shapes, e.g. "n";
//   - the buffer of each leaf, named after it (e.g. "%0"), and the buffer of the output;
//   - for each access, its strides "%{leaf}.s{slot}" and, if WithOffset, its offset "%{leaf}.o{slot}",
//     as returned by Strides;
//   - the strides of the output "%{out}.s", as returned by OutputStrides.
type Kernel struct {
	Name     string
	Output   Tensor
	Stmt     stmt.Stmt
	Accesses []Access

	strides layout.Fn
}

// Strides returns the strides of each access of the kernel, in the order of Accesses, for the
// given concrete dimensions.
func (k *Kernel) Strides(env expr.Env) ([]layout.Strides, error) {
	strides, err := k.strides(env)
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %s", k.Name)
	}
	if len(strides) != len(k.Accesses) {
		return nil, errors.Errorf("kernel %s: %d accesses but got %d strides", k.Name, len(k.Accesses), len(strides))
	}
	return strides, nil
}

// OutputStrides returns the strides of the output buffer, laid out contiguously in row-major order.
func (k *Kernel) OutputStrides(env expr.Env) ([]int64, error) {
	dims, err := k.Output.Shape.Concrete(env)
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %s", k.Name)
	}
	return layout.Contiguous(dims), nil
}

// OutputStridesName returns the name of the buffer holding the strides of the output.
func (k *Kernel) OutputStridesName() string {
	return outputStridesName(k.Output.ID)
}

// Leaves returns the distinct leaves read by the kernel, ordered by id.
func (k *Kernel) Leaves() []Tensor {
	ids := sets.Make[NodeId]()
	byID := make(map[NodeId]Tensor)
	for _, a := range k.Accesses {
		ids.Insert(a.Leaf.ID)
		byID[a.Leaf.ID] = a.Leaf
	}
	return xslices.Map(sets.Sorted(ids), func(id NodeId) Tensor { return byID[id] })
}

// String returns the name and the statement of the kernel.
func (k *Kernel) String() string {
	return fmt.Sprintf("kernel %s -> %s:\n%s", k.Name, k.Output, k.Stmt)
}
