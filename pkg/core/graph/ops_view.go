// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/gomlx/tensorir/pkg/core/stage"
	"github.com/pkg/errors"
)

// Views: Slice and Reshape never read or write data, they only change the strides and offsets used
// to access the leaves. Their body simply forwards the value of their input.

// Slice ------------------------------------------------------------------------------------------

type sliceOp struct {
	// specs resolved against the input shape: one per axis, all fields set.
	specs []shapes.SliceSpec
}

// Slice selects a strided sub-range of each axis of x (see shapes.SliceSpec). Missing trailing
// specs select the whole axis.
func (c *Context) Slice(x Tensor, specs ...shapes.SliceSpec) (Tensor, error) {
	nodes, err := c.nodesOf("Slice", x)
	if err != nil {
		return Tensor{}, err
	}
	shape, resolved, err := shapes.Slice(nodes[0].shape, specs)
	if err != nil {
		return Tensor{}, err
	}
	return c.registerNode(shape, &sliceOp{specs: resolved}, nodes...), nil
}

func (*sliceOp) name() string { return "Slice" }

func (o *sliceOp) strides(_ *Context, _ *Node, inputs []layout.Fn) layout.Fn {
	return layout.Slice(o.specs, inputs[0])
}

func (o *sliceOp) pattern(_ *Context, _ *Node, inputs []layout.Pattern) layout.Pattern {
	return layout.SlicePattern(o.specs, inputs[0])
}

func (*sliceOp) body(_ *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	return emit(n, inputs, s, inputs[0].value)
}

func (o *sliceOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	inputIndex := make([]expr.Expr, len(index))
	for axis, spec := range o.specs {
		inputIndex[axis] = expr.Simplify(expr.Plus(spec.Start, expr.Times(index[axis], spec.Step)))
	}
	return d.def(n.inputs[0], inputIndex)
}

// Reshape ----------------------------------------------------------------------------------------

type reshapeOp struct {
	groups []shapes.ReshapeGroup

	// symbolic strides, validated when the node is built.
	strided layout.Pattern
}

// Reshape changes the dimensions of x, keeping its elements in row-major order.
//
// The new shape must be a regrouping of consecutive axes of x (see shapes.Reshape), and the axes
// merged must be contiguous in memory for every leaf read by x. Otherwise it returns a *ShapeError:
// e.g. merging the axes of a broadcast, of a slice with gaps, or the axes left around a reduced one.
func (c *Context) Reshape(x Tensor, dimensions ...any) (Tensor, error) {
	nodes, err := c.nodesOf("Reshape", x)
	if err != nil {
		return Tensor{}, err
	}
	var (
		shape  shapes.Shape
		groups []shapes.ReshapeGroup
	)
	panicErr := exceptions.TryCatch[error](func() {
		shape, groups, err = shapes.Reshape(nodes[0].shape, dimensions...)
	})
	if panicErr != nil {
		return Tensor{}, errors.WithMessage(panicErr, "Reshape")
	}
	if err != nil {
		return Tensor{}, err
	}
	strided, err := layout.ReshapePattern(nodes[0].shape, shape, groups, nodes[0].pattern)
	if err != nil {
		return Tensor{}, err
	}
	return c.registerNode(shape, &reshapeOp{groups: groups, strided: strided}, nodes...), nil
}

func (*reshapeOp) name() string { return "Reshape" }

func (o *reshapeOp) strides(c *Context, n *Node, inputs []layout.Fn) layout.Fn {
	return layout.Reshape(c.inputShape(n, 0), n.shape, o.groups, inputs[0])
}

func (o *reshapeOp) pattern(_ *Context, _ *Node, _ []layout.Pattern) layout.Pattern {
	return o.strided
}

func (*reshapeOp) body(_ *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	return emit(n, inputs, s, inputs[0].value)
}

// definition maps the index into the input: within each group, the target index is linearized and
// then split over the source axes.
func (o *reshapeOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	from := d.c.inputShape(n, 0)
	inputIndex := make([]expr.Expr, from.Rank())
	for _, group := range o.groups {
		linear := expr.AsExpr(0)
		for _, axis := range group.To {
			linear = expr.Plus(expr.Times(linear, n.shape.Dim(axis)), index[axis])
		}
		if len(group.From) == 1 {
			inputIndex[group.From[0]] = expr.Simplify(linear)
			continue
		}
		inner := expr.AsExpr(1)
		for ii := len(group.From) - 1; ii >= 0; ii-- {
			axis := group.From[ii]
			axisIndex := expr.Quo(linear, inner)
			if ii > 0 {
				axisIndex = expr.Rem(axisIndex, from.Dim(axis))
			}
			inputIndex[axis] = expr.Simplify(axisIndex)
			inner = expr.Times(inner, from.Dim(axis))
		}
	}
	return d.def(n.inputs[0], inputIndex)
}
