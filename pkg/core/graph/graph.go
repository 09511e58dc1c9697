// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph builds the dataflow graph of tensor operations and lowers it to nested loops.
//
// The main elements in the package are:
//
//   - Context holds the nodes of the graph. Each builder (Placeholder, Add, Sum, Reshape, Slice, ...)
//     validates the shapes of its inputs, appends a new Node and returns a Tensor handle.
//
//   - Tensor is a lightweight handle to a node: its NodeId and its Shape. Tensors are only valid
//     within the Context that created them.
//
//   - Schedule selects the output tensors to compute, and lowers each of them to one stmt.Stmt:
//     a loop nest over the output axes with every intermediate value inlined.
//
// # Shapes and strides
//
// Dimensions are symbolic (see package shapes): a graph is built once and lowered once, and the
// concrete dimensions are only known when the kernels are run. The loops of a lowered kernel range
// over the symbolic dimensions, and every access to an input (a placeholder) is indexed through a
// runtime stride vector, computed by Kernel.Strides for the concrete dimensions.
//
// Reshape, Slice and broadcasting never move data: they only transform the strides (and offsets)
// used to read the inputs. Each node also keeps the strides in symbolic form (layout.Pattern), so a
// Reshape that would need to merge non-contiguous axes is rejected when it is built.
//
// # Error Handling
//
// Builders return an error for invalid shapes (a *ShapeError, test with errors.As) and for
// tensors that don't belong to the Context. Once the graph is built, lowering can't fail: an
// inconsistency found during lowering is a bug and panics (see github.com/gomlx/exceptions).
package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/layout"
	"github.com/gomlx/tensorir/pkg/core/shapes"
	"github.com/pkg/errors"
)

// ShapeError is returned by the builders when their inputs have incompatible shapes.
type ShapeError = shapes.ShapeError

// NodeId is a unique identifier of a Node within its Context. Ids are assigned in creation order.
type NodeId int

// InvalidNodeId indicates a node that failed to be created.
const InvalidNodeId = NodeId(-1)

// Context holds the nodes of a tensor graph. Nodes only refer to nodes created before them, so the
// graph is a DAG by construction.
//
// A Context is not safe for concurrent use.
type Context struct {
	nodes []*Node
}

// New creates an empty Context.
func New() *Context {
	return &Context{}
}

// NumNodes returns the number of nodes created so far.
func (c *Context) NumNodes() int {
	return len(c.nodes)
}

// Node returns the node of the tensor, or an error if the tensor wasn't created by this Context.
func (c *Context) Node(t Tensor) (*Node, error) {
	if t.ctx != c {
		return nil, errors.Errorf("tensor %s doesn't belong to this graph context", t)
	}
	if t.ID < 0 || int(t.ID) >= len(c.nodes) {
		return nil, errors.Errorf("tensor %s has an invalid id: the context has %d nodes", t, len(c.nodes))
	}
	return c.nodes[t.ID], nil
}

// registerNode appends the node to the Context, assigning its id, and returns its Tensor handle.
func (c *Context) registerNode(shape shapes.Shape, op op, inputs ...*Node) Tensor {
	n := &Node{
		id:    NodeId(len(c.nodes)),
		shape: shape,
		op:    op,
	}
	n.inputs = make([]NodeId, len(inputs))
	patterns := make([]layout.Pattern, len(inputs))
	for ii, input := range inputs {
		n.inputs[ii] = input.id
		patterns[ii] = input.pattern
	}
	n.pattern = op.pattern(c, n, patterns)
	c.nodes = append(c.nodes, n)
	return c.tensor(n)
}

func (c *Context) tensor(n *Node) Tensor {
	return Tensor{ID: n.id, Shape: n.shape, ctx: c}
}

// nodesOf converts the tensors to their nodes, failing on the first invalid one.
func (c *Context) nodesOf(op string, tensors ...Tensor) ([]*Node, error) {
	nodes := make([]*Node, len(tensors))
	for ii, t := range tensors {
		n, err := c.Node(t)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: input #%d", op, ii)
		}
		nodes[ii] = n
	}
	return nodes, nil
}

// Node of the graph: the result of one operation.
type Node struct {
	id     NodeId
	shape  shapes.Shape
	inputs []NodeId
	op     op

	// pattern holds the symbolic strides of the leaves read by the node.
	pattern layout.Pattern
}

// Id of the node within its Context.
func (n *Node) Id() NodeId { return n.id }

// Shape of the node.
func (n *Node) Shape() shapes.Shape { return n.shape }

// DType of the node's elements.
func (n *Node) DType() dtypes.DType { return n.shape.DType }

// Inputs returns the ids of the input nodes.
func (n *Node) Inputs() []NodeId { return n.inputs }

// OpName returns the name of the operation of the node, e.g. "Placeholder", "Add" or "ReduceSum".
func (n *Node) OpName() string { return n.op.name() }

// IsLeaf returns whether the node is an input of the graph (a placeholder).
func (n *Node) IsLeaf() bool {
	_, ok := n.op.(*placeholderOp)
	return ok
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("#%d %s(%v) -> %s", n.id, n.op.name(), n.inputs, n.shape)
}

// Tensor is a handle to a node of a Context: its id and shape.
type Tensor struct {
	ID    NodeId
	Shape shapes.Shape
	ctx   *Context
}

// DType of the tensor's elements.
func (t Tensor) DType() dtypes.DType { return t.Shape.DType }

// Rank of the tensor.
func (t Tensor) Rank() int { return t.Shape.Rank() }

// BufferName is the name of the buffer holding the tensor in the lowered statements.
func (t Tensor) BufferName() string { return bufferName(t.ID) }

// String implements fmt.Stringer.
func (t Tensor) String() string {
	return fmt.Sprintf("%%%d%s", t.ID, t.Shape)
}

func bufferName(id NodeId) string {
	return fmt.Sprintf("%%%d", id)
}

// String lists the nodes of the Context, one per line.
func (c *Context) String() string {
	var sb strings.Builder
	for _, n := range c.nodes {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
