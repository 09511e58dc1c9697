// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/gomlx/tensorir/pkg/core/stage"
	"github.com/gomlx/tensorir/pkg/core/stmt"
	"github.com/pkg/errors"
)

// reduction describes one kind of associative reduction. All reductions share the same loop
// skeleton (see reduceOp.body) and differ only by the fields below.
type reduction struct {
	opName string

	// symbol is the name of the reduction in expr.Reduce definitions.
	symbol string

	// identity is the initial value of the accumulator, for the dtype of the reduced input.
	identity func(dtype dtypes.DType) expr.Expr

	// accumulate, if set, combines x in place into target, which can be the output element itself.
	accumulate func(target, x expr.Expr) stmt.Stmt

	// combine, if set, returns the new value of the accumulator acc after x.
	combine func(acc, x expr.Expr) expr.Expr

	// better, if set, makes the reduction track the position of the selected element: it
	// returns whether x replaces the current accumulator acc.
	better func(x, acc expr.Expr) expr.Expr
}

var (
	reduceSum = &reduction{
		opName:   "ReduceSum",
		symbol:   "sum",
		identity: func(dtype dtypes.DType) expr.Expr { return constant(dtype, 0) },
		accumulate: func(target, x expr.Expr) stmt.Stmt {
			return stmt.MakeInplaceAdd(target, x)
		},
	}
	reduceProd = &reduction{
		opName:   "ReduceProd",
		symbol:   "prod",
		identity: func(dtype dtypes.DType) expr.Expr { return constant(dtype, 1) },
		accumulate: func(target, x expr.Expr) stmt.Stmt {
			return stmt.MakeInplaceMul(target, x)
		},
	}
	reduceMax = &reduction{
		opName:   "ReduceMax",
		symbol:   "max",
		identity: lowest,
		combine:  func(acc, x expr.Expr) expr.Expr { return expr.MakeMax(acc, x) },
	}
	reduceMin = &reduction{
		opName:   "ReduceMin",
		symbol:   "min",
		identity: highest,
		combine:  func(acc, x expr.Expr) expr.Expr { return expr.MakeMin(acc, x) },
	}
	reduceArgMax = &reduction{
		opName:   "ArgMax",
		symbol:   "argmax",
		identity: lowest,
		better:   func(x, acc expr.Expr) expr.Expr { return expr.MakeGt(x, acc) },
	}
	reduceArgMin = &reduction{
		opName:   "ArgMin",
		symbol:   "argmin",
		identity: highest,
		better:   func(x, acc expr.Expr) expr.Expr { return expr.MakeLt(x, acc) },
	}
)

// constant returns the literal v of the given dtype.
func constant(dtype dtypes.DType, v float64) expr.Expr {
	switch {
	case dtype.IsFloat():
		return expr.MakeFloat(dtype, v)
	case dtype == dtypes.Bool:
		return expr.MakeBool(v != 0)
	case dtype.IsUnsigned():
		return expr.MakeUInt(dtype, uint64(v))
	}
	return expr.MakeInt(dtype, int64(v))
}

// lowest returns the lowest value of dtype: -Inf for floats.
func lowest(dtype dtypes.DType) expr.Expr {
	switch {
	case dtype.IsFloat():
		return expr.MakeFloat(dtype, dtype.LowestFloat())
	case dtype == dtypes.Bool:
		return expr.MakeBool(false)
	case dtype.IsUnsigned():
		return expr.MakeUInt(dtype, 0)
	}
	return expr.MakeInt(dtype, -1<<(dtype.Bits()-1))
}

// highest returns the highest value of dtype: +Inf for floats.
func highest(dtype dtypes.DType) expr.Expr {
	switch {
	case dtype.IsFloat():
		return expr.MakeFloat(dtype, dtype.HighestFloat())
	case dtype == dtypes.Bool:
		return expr.MakeBool(true)
	case dtype.IsUnsigned():
		return expr.MakeUInt(dtype, math.MaxUint64>>(64-dtype.Bits()))
	}
	return expr.MakeInt(dtype, 1<<(dtype.Bits()-1)-1)
}

type reduceOp struct {
	*reduction

	// axes reduced, normalized: sorted, no duplicates.
	axes []int

	// init is the identity used by the reduction.
	init expr.Expr
}

func (c *Context) reduce(r *reduction, x Tensor, init expr.Expr, axes []int) (Tensor, error) {
	nodes, err := c.nodesOf(r.opName, x)
	if err != nil {
		return Tensor{}, err
	}
	operand := nodes[0].shape
	if operand.DType == dtypes.Bool {
		return Tensor{}, shapes.Errorf(r.opName, []shapes.Shape{operand}, "not defined for booleans")
	}
	shape, normalized, err := shapes.Reduce(r.opName, operand, axes)
	if err != nil {
		return Tensor{}, err
	}
	if r.better != nil {
		if len(normalized) != 1 {
			return Tensor{}, shapes.Errorf(r.opName, []shapes.Shape{operand},
				"exactly one axis must be reduced, got %v", axes)
		}
		shape = shape.WithDType(dtypes.Int64)
	}
	if init == nil {
		init = r.identity(operand.DType)
	}
	return c.registerNode(shape, &reduceOp{reduction: r, axes: normalized, init: init}, nodes...), nil
}

// Sum reduces the given axes (all axes if none is given) of x by addition, starting from init.
// If init is nil, it starts from 0. Otherwise, init is converted to an expression (see expr.AsExpr)
// of the dtype of x.
func (c *Context) Sum(x Tensor, init any, axes ...int) (Tensor, error) {
	var initExpr expr.Expr
	if init != nil {
		n, err := c.Node(x)
		if err != nil {
			return Tensor{}, errors.WithMessage(err, "ReduceSum")
		}
		err = exceptions.TryCatch[error](func() {
			initExpr = expr.Simplify(expr.MakeCast(expr.AsExpr(init), n.DType()))
		})
		if err != nil {
			return Tensor{}, errors.WithMessagef(err, "ReduceSum: invalid init value %v", init)
		}
	}
	return c.reduce(reduceSum, x, initExpr, axes)
}

// Prod reduces the given axes (all axes if none is given) of x by multiplication.
func (c *Context) Prod(x Tensor, axes ...int) (Tensor, error) {
	return c.reduce(reduceProd, x, nil, axes)
}

// ReduceMax returns the maximum over the given axes (all axes if none is given) of x.
func (c *Context) ReduceMax(x Tensor, axes ...int) (Tensor, error) {
	return c.reduce(reduceMax, x, nil, axes)
}

// ReduceMin returns the minimum over the given axes (all axes if none is given) of x.
func (c *Context) ReduceMin(x Tensor, axes ...int) (Tensor, error) {
	return c.reduce(reduceMin, x, nil, axes)
}

// ArgMax returns the position (an Int64) of the maximum of x along axis. Ties resolve to the
// first position.
func (c *Context) ArgMax(x Tensor, axis int) (Tensor, error) {
	return c.reduce(reduceArgMax, x, nil, []int{axis})
}

// ArgMin returns the position (an Int64) of the minimum of x along axis. Ties resolve to the
// first position.
func (c *Context) ArgMin(x Tensor, axis int) (Tensor, error) {
	return c.reduce(reduceArgMin, x, nil, []int{axis})
}

func (o *reduceOp) name() string { return o.opName }

func (o *reduceOp) strides(c *Context, n *Node, inputs []layout.Fn) layout.Fn {
	return layout.Reduce(inputs[0], c.inputShape(n, 0).Rank(), o.axes)
}

func (o *reduceOp) pattern(_ *Context, _ *Node, inputs []layout.Pattern) layout.Pattern {
	return layout.ReducePattern(inputs[0], o.axes)
}

// reduceDims returns one iteration variable per reduced axis, named after prefix.
func (o *reduceOp) reduceDims(prefix string, input shapes.Shape) []*expr.IterVar {
	dims := make([]*expr.IterVar, len(o.axes))
	for k, axis := range o.axes {
		dims[k] = expr.MakeAxis(fmt.Sprintf("%s.r%d", prefix, k), input.Dim(axis))
	}
	return dims
}

// body generates the reduction skeleton:
//
//	inits: seed the accumulator with the identity;
//	for r... { input body; update accumulator };
//	posts: store the accumulator (Output mode, if it is not the output element itself).
func (o *reduceOp) body(l *lowering, n *Node, inputs []lowered, s sink) stage.Body {
	input := l.c.nodes[n.inputs[0]]
	dims := o.reduceDims(s.prefix, input.shape)
	x := inputs[0].value
	var inits, updates, posts []stmt.Stmt
	switch {
	case o.accumulate != nil:
		inits = append(inits, s.deliver(o.init))
		updates = append(updates, o.accumulate(s.target(), x))

	case o.combine != nil:
		acc := s.value()
		if s.mode == Output {
			acc = s.local("acc", n.DType())
		}
		inits = append(inits, stmt.MakeLet(acc, o.init))
		updates = append(updates, stmt.MakeAssign(acc, o.combine(acc, x)))
		if s.mode == Output {
			posts = append(posts, s.deliver(acc))
		}

	case o.better != nil:
		acc := s.local("acc", input.DType())
		idx := s.value()
		if s.mode == Output {
			idx = s.local("idx", n.DType())
		}
		inits = append(inits, stmt.MakeLet(acc, o.init), stmt.MakeLet(idx, constant(n.DType(), 0)))
		updates = append(updates, stmt.MakeIf(o.better(x, acc),
			stmt.MakeSeq(stmt.MakeAssign(acc, x), stmt.MakeAssign(idx, dims[0].Var)), nil))
		if s.mode == Output {
			posts = append(posts, s.deliver(idx))
		}

	default:
		exceptions.Panicf("reduction %s has no update rule", o.opName)
	}
	rs := &stage.ReduceStage{
		Dims:   dims,
		Inits:  []stage.Body{stage.Stmts(inits...)},
		Bodies: []stage.Body{inputs[0].body, stage.Stmts(updates...)},
		Input:  int(input.id),
		ID:     int(n.id),
	}
	if len(posts) > 0 {
		rs.Posts = []stage.Body{stage.Stmts(posts...)}
	}
	return rs
}

func (o *reduceOp) definition(d *definer, n *Node, index []expr.Expr) expr.Expr {
	input := d.c.nodes[n.inputs[0]]
	iters := make([]*expr.IterVar, len(o.axes))
	inputIndex := make([]expr.Expr, 0, input.shape.Rank())
	next, kept := 0, 0
	for axis := range input.shape.Rank() {
		if next < len(o.axes) && o.axes[next] == axis {
			iters[next] = d.reduceVar(input.shape.Dim(axis))
			inputIndex = append(inputIndex, iters[next].Var)
			next++
			continue
		}
		inputIndex = append(inputIndex, index[kept])
		kept++
	}
	value := d.def(input.id, inputIndex)
	return expr.MakeReduce(o.symbol, []expr.Expr{o.init}, iters, []expr.Expr{value})
}
