// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/gomlx/tensorir/pkg/core/stage"
	"github.com/pkg/errors"
)

// op is the operation of a node. The set of operations is closed: one type per kind.
type op interface {
	name() string

	// strides returns the strides function of the node, given the strides functions of its inputs.
	strides(c *Context, n *Node, inputs []layout.Fn) layout.Fn

	// pattern returns the symbolic strides of the node, given the ones of its inputs.
	pattern(c *Context, n *Node, inputs []layout.Pattern) layout.Pattern

	// body generates the body of the node, given the bodies of its inputs (always a *stage.Stage or
	// a *stage.ReduceStage) and the variables holding their values.
	body(l *lowering, n *Node, inputs []lowered, s sink) stage.Body

	// definition returns the value of the element of n at the given index.
	definition(d *definer, n *Node, index []expr.Expr) expr.Expr
}

var (
	_ op = (*placeholderOp)(nil)
	_ op = (*binaryOp)(nil)
	_ op = (*unaryOp)(nil)
	_ op = (*castOp)(nil)
	_ op = (*reduceOp)(nil)
	_ op = (*sliceOp)(nil)
	_ op = (*reshapeOp)(nil)
)

// inputShape returns the shape of the ii-th input of n.
func (c *Context) inputShape(n *Node, ii int) shapes.Shape {
	return c.nodes[n.inputs[ii]].shape
}

// Placeholder ------------------------------------------------------------------------------------

type placeholderOp struct{}

// Placeholder creates an input tensor. Dimensions can be Go integers, names of symbolic dimensions
// or expr.Expr (see shapes.Make).
func (c *Context) Placeholder(dtype dtypes.DType, dimensions ...any) (Tensor, error) {
	if dtype == dtypes.InvalidDType || dtype.IsComplex() {
		return Tensor{}, errors.Errorf("Placeholder: unsupported dtype %s", dtype)
	}
	var shape shapes.Shape
	err := exceptions.TryCatch[error](func() { shape = shapes.Make(dtype, dimensions...) })
	if err != nil {
		return Tensor{}, errors.WithMessage(err, "Placeholder")
	}
	return c.registerNode(shape, &placeholderOp{}), nil
}

func (*placeholderOp) name() string { return "Placeholder" }

func (*placeholderOp) strides(_ *Context, n *Node, _ []layout.Fn) layout.Fn {
	return layout.Placeholder(n.shape)
}

func (*placeholderOp) pattern(_ *Context, n *Node, _ []layout.Pattern) layout.Pattern {
	return layout.PlaceholderPattern(n.shape)
}

func (*placeholderOp) body(l *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	if s.mode == Output {
		exceptions.Panicf("lowering invariant violated: placeholder %s can't be lowered as an output", n)
	}
	return emit(n, inputs, s, expr.MakeLoad(n.DType(), bufferName(n.id), l.access(n)))
}

func (*placeholderOp) definition(_ *definer, n *Node, index []expr.Expr) expr.Expr {
	args := make([]any, len(index))
	for ii, e := range index {
		args[ii] = e
	}
	return expr.MakeCall(bufferName(n.id), n.DType(), args...)
}

// Binary operations ------------------------------------------------------------------------------

type binaryOp struct {
	opName string
	kind   expr.Kind

	// call is set for the operations without an expression kind: they are lowered to a call.
	call string
}

func (c *Context) binary(op *binaryOp, lhs, rhs Tensor) (Tensor, error) {
	nodes, err := c.nodesOf(op.opName, lhs, rhs)
	if err != nil {
		return Tensor{}, err
	}
	shape, err := shapes.Broadcast(op.opName, nodes[0].shape, nodes[1].shape)
	if err != nil {
		return Tensor{}, err
	}
	return c.registerNode(shape, op, nodes...), nil
}

// Add returns lhs + rhs, broadcasting the operands if needed.
func (c *Context) Add(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Add", kind: expr.KindAdd}, lhs, rhs)
}

// Sub returns lhs - rhs, broadcasting the operands if needed.
func (c *Context) Sub(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Sub", kind: expr.KindSub}, lhs, rhs)
}

// Mul returns lhs * rhs, broadcasting the operands if needed.
func (c *Context) Mul(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Mul", kind: expr.KindMul}, lhs, rhs)
}

// Div returns lhs / rhs, broadcasting the operands if needed.
func (c *Context) Div(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Div", kind: expr.KindDiv}, lhs, rhs)
}

// Rem returns the remainder of lhs / rhs, broadcasting the operands if needed.
func (c *Context) Rem(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Rem", kind: expr.KindMod}, lhs, rhs)
}

// Max returns the element-wise maximum of lhs and rhs.
func (c *Context) Max(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Max", kind: expr.KindMax}, lhs, rhs)
}

// Min returns the element-wise minimum of lhs and rhs.
func (c *Context) Min(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Min", kind: expr.KindMin}, lhs, rhs)
}

// Pow returns lhs raised to the power rhs.
func (c *Context) Pow(lhs, rhs Tensor) (Tensor, error) {
	return c.binary(&binaryOp{opName: "Pow", call: "pow"}, lhs, rhs)
}

func (o *binaryOp) name() string { return o.opName }

func (*binaryOp) strides(c *Context, n *Node, inputs []layout.Fn) layout.Fn {
	return layout.Binary(c.inputShape(n, 0), c.inputShape(n, 1), n.shape, inputs[0], inputs[1])
}

func (*binaryOp) pattern(c *Context, n *Node, inputs []layout.Pattern) layout.Pattern {
	return layout.BinaryPattern(c.inputShape(n, 0), c.inputShape(n, 1), n.shape, inputs[0], inputs[1])
}

func (o *binaryOp) apply(dtype dtypes.DType, lhs, rhs expr.Expr) expr.Expr {
	if o.call != "" {
		return expr.MakeCall(o.call, dtype, lhs, rhs)
	}
	return expr.MakeBinary(o.kind, lhs, rhs)
}

func (o *binaryOp) body(_ *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	return emit(n, inputs, s, o.apply(n.DType(), inputs[0].value, inputs[1].value))
}

func (o *binaryOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	lhs := d.def(n.inputs[0], broadcastIndex(d.c.inputShape(n, 0), index))
	rhs := d.def(n.inputs[1], broadcastIndex(d.c.inputShape(n, 1), index))
	return o.apply(n.DType(), lhs, rhs)
}

// Unary operations -------------------------------------------------------------------------------

type unaryOp struct {
	opName, call string
	floatOnly    bool
}

func (c *Context) unary(op *unaryOp, x Tensor) (Tensor, error) {
	nodes, err := c.nodesOf(op.opName, x)
	if err != nil {
		return Tensor{}, err
	}
	operand := nodes[0].shape
	if op.floatOnly && !operand.DType.IsFloat() {
		return Tensor{}, shapes.Errorf(op.opName, []shapes.Shape{operand}, "requires a float dtype, got %s",
			operand.DType)
	}
	if operand.DType == dtypes.Bool {
		return Tensor{}, shapes.Errorf(op.opName, []shapes.Shape{operand}, "not defined for booleans")
	}
	return c.registerNode(operand, op, nodes...), nil
}

// Sin returns the element-wise sine of x.
func (c *Context) Sin(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Sin", call: "sin", floatOnly: true}, x)
}

// Cos returns the element-wise cosine of x.
func (c *Context) Cos(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Cos", call: "cos", floatOnly: true}, x)
}

// Tan returns the element-wise tangent of x.
func (c *Context) Tan(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Tan", call: "tan", floatOnly: true}, x)
}

// Exp returns the element-wise e**x.
func (c *Context) Exp(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Exp", call: "exp", floatOnly: true}, x)
}

// Log returns the element-wise natural logarithm of x.
func (c *Context) Log(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Log", call: "log", floatOnly: true}, x)
}

// Sqrt returns the element-wise square root of x.
func (c *Context) Sqrt(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Sqrt", call: "sqrt", floatOnly: true}, x)
}

// Tanh returns the element-wise hyperbolic tangent of x.
func (c *Context) Tanh(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Tanh", call: "tanh", floatOnly: true}, x)
}

// Sigmoid returns the element-wise 1/(1+exp(-x)).
func (c *Context) Sigmoid(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Sigmoid", call: "sigmoid", floatOnly: true}, x)
}

// Abs returns the element-wise absolute value of x.
func (c *Context) Abs(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Abs", call: "abs"}, x)
}

// Neg returns -x.
func (c *Context) Neg(x Tensor) (Tensor, error) {
	return c.unary(&unaryOp{opName: "Neg", call: "neg"}, x)
}

func (o *unaryOp) name() string { return o.opName }

func (*unaryOp) strides(_ *Context, _ *Node, inputs []layout.Fn) layout.Fn {
	return layout.Elementwise(inputs[0])
}

func (*unaryOp) pattern(_ *Context, _ *Node, inputs []layout.Pattern) layout.Pattern {
	return inputs[0]
}

func (o *unaryOp) body(_ *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	return emit(n, inputs, s, expr.MakeCall(o.call, n.DType(), inputs[0].value))
}

func (o *unaryOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	return expr.MakeCall(o.call, n.DType(), d.def(n.inputs[0], index))
}

// Cast -------------------------------------------------------------------------------------------

type castOp struct{}

// Cast converts the elements of x to dtype.
func (c *Context) Cast(x Tensor, dtype dtypes.DType) (Tensor, error) {
	nodes, err := c.nodesOf("Cast", x)
	if err != nil {
		return Tensor{}, err
	}
	if dtype == dtypes.InvalidDType || dtype.IsComplex() {
		return Tensor{}, shapes.Errorf("Cast", []shapes.Shape{nodes[0].shape}, "unsupported target dtype %s", dtype)
	}
	return c.registerNode(nodes[0].shape.WithDType(dtype), &castOp{}, nodes...), nil
}

func (*castOp) name() string { return "Cast" }

func (*castOp) strides(_ *Context, _ *Node, inputs []layout.Fn) layout.Fn {
	return layout.Elementwise(inputs[0])
}

func (*castOp) pattern(_ *Context, _ *Node, inputs []layout.Pattern) layout.Pattern {
	return inputs[0]
}

func (*castOp) body(_ *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	return emit(n, inputs, s, expr.MakeCast(inputs[0].value, n.DType()))
}

func (*castOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	return expr.MakeCast(d.def(n.inputs[0], index), n.DType())
}
