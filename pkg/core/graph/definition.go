// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// definer builds the symbolic definition of a tensor.
type definer struct {
	c          *Context
	numReduced int
}

// def returns the element of the node id at the given index.
func (d *definer) def(id NodeId, index []expr.Expr) expr.Expr {
	n := d.c.nodes[id]
	if len(index) != n.shape.Rank() {
		exceptions.Panicf("definition of %s requires %d indices, got %d", n, n.shape.Rank(), len(index))
	}
	return n.op.definition(d, n, index)
}

// reduceVar returns a new reduction variable, r0, r1, ..., for an axis with the given dimension.
func (d *definer) reduceVar(dim expr.Expr) *expr.IterVar {
	iv := expr.MakeAxis(fmt.Sprintf("r%d", d.numReduced), dim)
	d.numReduced++
	return iv
}

// broadcastIndex maps the index of a broadcast result to the index of the operand: the operand is
// right-aligned, and its size-1 axes are always read at 0.
func broadcastIndex(operand shapes.Shape, index []expr.Expr) []expr.Expr {
	padding := len(index) - operand.Rank()
	operandIndex := make([]expr.Expr, operand.Rank())
	for axis, dim := range operand.Dimensions {
		if shapes.IsOne(dim) {
			operandIndex[axis] = expr.AsExpr(0)
		} else {
			operandIndex[axis] = index[axis+padding]
		}
	}
	return operandIndex
}

// Definition returns the value of the element of t at index (i0, i1, ...), as a single expression
// over the placeholders, in the style of a Halide function definition:
//
//   - an element of placeholder %k is the call %k(indices...);
//   - reductions are expr.Reduce nodes over new variables r0, r1, ...;
//   - broadcasting, slicing and reshaping are folded into the indices.
//
// E.g., for c = Sum(a, nil, 1) with a of shape [n, m]: "reduce_sum(%0(i0, r0); r0 in 0..m; init=0.0)".
func (c *Context) Definition(t Tensor) (def expr.Expr, err error) {
	n, err := c.Node(t)
	if err != nil {
		return nil, errors.WithMessage(err, "Definition")
	}
	index := make([]expr.Expr, n.shape.Rank())
	for ii := range index {
		index[ii] = expr.MakeVar(fmt.Sprintf("i%d", ii))
	}
	err = exceptions.TryCatch[error](func() {
		def = (&definer{c: c}).def(n.id, index)
	})
	if err != nil {
		return nil, err
	}
	return def, nil
}

// StridesFn returns the function that computes, for concrete dimensions, the strides of every
// access to a leaf made by the kernel that computes t: one layout.Strides per access, in the order
// of Kernel.Accesses.
//
// The function composes the strides functions of all the nodes t depends on: it is evaluated from
// scratch every time it is called.
func (c *Context) StridesFn(t Tensor) (layout.Fn, error) {
	n, err := c.Node(t)
	if err != nil {
		return nil, errors.WithMessage(err, "StridesFn")
	}
	return c.stridesFn(n), nil
}

func (c *Context) stridesFn(n *Node) layout.Fn {
	inputs := make([]layout.Fn, len(n.inputs))
	for ii, id := range n.inputs {
		inputs[ii] = c.stridesFn(c.nodes[id])
	}
	return n.op.strides(c, n, inputs)
}
