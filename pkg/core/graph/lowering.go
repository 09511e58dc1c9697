// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/stage"
	"github.com/gomlx/tensorir/pkg/core/stmt"
	"k8s.io/klog/v2"
)

// Mode in which the body of a node is generated.
type Mode int

const (
	// Intermediate binds the value of the node to a variable, for the nodes that use it.
	Intermediate Mode = iota

	// Output stores the value of the node into its buffer. Only the root of a lowering is generated
	// in Output mode.
	Output
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Intermediate:
		return "Intermediate"
	case Output:
		return "Output"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// sink is where the body of a node delivers its value: a variable bound with a Let (Intermediate)
// or an element of the root buffer (Output).
type sink struct {
	mode Mode

	// prefix of the names of the variables of this visit of the node: "%3" for the first visit,
	// "%3_1" for the second, etc.
	prefix string
	dtype  dtypes.DType

	// buffer and index of the element stored, in Output mode.
	buffer string
	index  expr.Expr
}

// value is the variable bound in Intermediate mode.
func (s sink) value() *expr.Variable {
	return s.local("val", s.dtype)
}

// local returns a variable private to this visit of the node.
func (s sink) local(suffix string, dtype dtypes.DType) *expr.Variable {
	return expr.MakeTypedVar(s.prefix+"_"+suffix, dtype)
}

// target is where a reduction can accumulate in place.
func (s sink) target() expr.Expr {
	if s.mode == Output {
		return expr.MakeLoad(s.dtype, s.buffer, s.index)
	}
	return s.value()
}

// deliver returns the statement that binds or stores v.
func (s sink) deliver(v expr.Expr) stmt.Stmt {
	if s.mode == Output {
		return stmt.MakeStore(expr.MakeTypedVar(s.buffer, s.dtype), s.index, v)
	}
	return stmt.MakeLet(s.value(), v)
}

// lowered is the generated body of an input node, and the variable holding its value.
type lowered struct {
	body  stage.Body
	value expr.Expr
}

// Access describes one read of a leaf tensor in a lowered kernel. The accesses are numbered
// (Slot) in the order the loads appear in the kernel, and Kernel.Strides returns one stride vector
// per access, in the same order.
type Access struct {
	Leaf Tensor
	Slot int

	// WithOffset is set if the index of the access includes a base offset, which happens when the
	// leaf is read through a Slice.
	WithOffset bool
}

// lowering generates the bodies of the nodes reachable from one root.
type lowering struct {
	c        *Context
	visits   map[NodeId]int
	sliced   int
	accesses []Access
}

func newLowering(c *Context) *lowering {
	return &lowering{c: c, visits: make(map[NodeId]int)}
}

// lower generates the body of n and, recursively, of its inputs in Intermediate mode.
func (l *lowering) lower(n *Node, s sink) stage.Body {
	_, isSlice := n.op.(*sliceOp)
	if isSlice {
		l.sliced++
	}
	inputs := make([]lowered, len(n.inputs))
	for ii, id := range n.inputs {
		input := l.c.nodes[id]
		inputSink := l.intermediate(input)
		body := stage.MustBeStage(l.lower(input, inputSink), n.op.name())
		inputs[ii] = lowered{body: body, value: inputSink.value()}
	}
	if isSlice {
		l.sliced--
	}
	if klog.V(3).Enabled() {
		klog.Infof("lowering %s in %s mode as %q", n, s.mode, s.prefix)
	}
	return n.op.body(l, n, inputs, s)
}

// intermediate returns the sink of a new visit of n. A node used more than once (possibly through
// different views) gets distinct variable names in each visit.
func (l *lowering) intermediate(n *Node) sink {
	visit := l.visits[n.id]
	l.visits[n.id]++
	prefix := bufferName(n.id)
	if visit > 0 {
		prefix = fmt.Sprintf("%s_%d", prefix, visit)
	}
	return sink{mode: Intermediate, prefix: prefix, dtype: n.DType()}
}

// access registers a new read of the leaf n, and returns the index expression to use: an access
// marker, resolved by stage.Lower.
func (l *lowering) access(n *Node) expr.Expr {
	a := Access{Leaf: l.c.tensor(n), Slot: len(l.accesses), WithOffset: l.sliced > 0}
	l.accesses = append(l.accesses, a)
	return stage.AccessMarker(a.Slot, a.WithOffset)
}

// emit returns the Stage of an element-wise node: the bodies of its inputs, the given statements
// and the delivery of value.
func emit(n *Node, inputs []lowered, s sink, value expr.Expr) stage.Body {
	bodies := make([]stage.Body, 0, len(inputs)+1)
	for _, input := range inputs {
		bodies = append(bodies, input.body)
	}
	bodies = append(bodies, stage.Stmts(s.deliver(value)))
	return &stage.Stage{Bodies: bodies, ID: int(n.id)}
}

// outputStridesName is the name of the buffer with the strides of the output buffer of the root.
func outputStridesName(id NodeId) string {
	return bufferName(id) + ".s"
}

// outputIndex is the flat index of the element of the root buffer at the given loop variables.
func outputIndex(id NodeId, axes []*expr.IterVar) expr.Expr {
	var index expr.Expr
	for k, axis := range axes {
		term := expr.Times(axis.Var, expr.MakeLoad(dtypes.Int64, outputStridesName(id), k))
		if index == nil {
			index = term
		} else {
			index = expr.Plus(index, term)
		}
	}
	if index == nil {
		index = expr.MakeInt(dtypes.Int64, 0)
	}
	return index
}

// lowerRoot returns the statement that computes every element of root, and the accesses to
// leaves it makes.
func (c *Context) lowerRoot(root *Node) (stmt.Stmt, []Access) {
	name := bufferName(root.id)
	axes := make([]*expr.IterVar, root.shape.Rank())
	for k, dim := range root.shape.Dimensions {
		axes[k] = expr.MakeAxis(fmt.Sprintf("%s.ax%d", name, k), dim)
	}
	s := sink{
		mode:   Output,
		prefix: name,
		dtype:  root.DType(),
		buffer: name,
		index:  outputIndex(root.id, axes),
	}
	l := newLowering(c)
	l.visits[root.id] = 1
	body := stage.MustBeStage(l.lower(root, s), "Schedule")
	return stage.Lower(&stage.Stage{Dims: axes, Bodies: []stage.Body{body}, ID: int(root.id)}), l.accesses
}
