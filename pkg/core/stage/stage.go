// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stage defines the lowering IR between the tensor graph and the statement tree: a Stage
// is one loop nest level (its iteration variables and a list of bodies), and a ReduceStage adds the
// statements run before and after a reduction loop.
//
// Lower turns a root Stage into a stmt.Stmt: it builds the nested loops, resolves the accesses to
// leaf tensors into strided index expressions and gives the loop variables their final names.
package stage

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/stmt"
)

// Body is one item of a Stage: a statement, a nested Stage or a ReduceStage.
type Body interface {
	isBody()
}

type (
	// StmtBody is a plain statement.
	StmtBody struct {
		Stmt stmt.Stmt
	}

	// Stage is one loop nest level: Bodies run once per point of the Dims iteration space.
	// A Stage without Dims is a plain block.
	Stage struct {
		Dims   []*expr.IterVar
		Bodies []Body
		ID     int
	}

	// ReduceStage is an associative reduction of node Input over the reduction axes Dims.
	//
	// Inits run once before the reduction loop, Bodies run once per point of the reduction space
	// and Posts run once after.
	ReduceStage struct {
		Dims   []*expr.IterVar
		Bodies []Body
		Inits  []Body
		Posts  []Body
		Input  int
		ID     int
	}
)

var (
	_ Body = (*StmtBody)(nil)
	_ Body = (*Stage)(nil)
	_ Body = (*ReduceStage)(nil)
)

func (*StmtBody) isBody()    {}
func (*Stage) isBody()       {}
func (*ReduceStage) isBody() {}

// Stmts returns a StmtBody with the sequence of the given statements.
func Stmts(stmts ...stmt.Stmt) *StmtBody {
	return &StmtBody{Stmt: stmt.MakeSeq(stmts...)}
}

// MustBeStage returns body if it is a *Stage or a *ReduceStage, and panics otherwise.
//
// The body generated for an operation is always a stage, so receiving a bare statement as the
// input of an operation means the graph was composed incorrectly.
func MustBeStage(body Body, op string) Body {
	switch body.(type) {
	case *Stage, *ReduceStage:
		return body
	}
	exceptions.Panicf("lowering invariant violated: %s expected a Stage or ReduceStage as input, got %T", op, body)
	panic(nil) // Quiet linter.
}

// BuildNestedFor wraps body in one For loop per dimension, the first dimension outermost.
func BuildNestedFor(dims []*expr.IterVar, body stmt.Stmt) stmt.Stmt {
	for ii := len(dims) - 1; ii >= 0; ii-- {
		body = stmt.MakeFor(dims[ii], body)
	}
	return body
}

// AccessMarkerName is the name of the call used as a placeholder index of a leaf load, before
// lowering resolves it.
const AccessMarkerName = "%access"

// AccessMarker returns the placeholder index of the slot-th access to a leaf tensor, in the
// depth-first order of the accesses. If withOffset is set, the resolved index includes the
// base offset of the access.
//
// Use it as the index of an expr.Load of the leaf buffer.
func AccessMarker(slot int, withOffset bool) expr.Expr {
	return expr.MakeCall(AccessMarkerName, dtypes.Int64, slot, withOffset)
}

// IsAccessMarker returns the slot of the access if e was created by AccessMarker.
func IsAccessMarker(e expr.Expr) (slot int, withOffset bool, ok bool) {
	call, isCall := e.(*expr.Call)
	if !isCall || call.Name() != AccessMarkerName || len(call.Args()) != 2 {
		return
	}
	slot64, ok0 := expr.IntValue(call.Args()[0])
	offset, ok1 := expr.IntValue(call.Args()[1])
	if !ok0 || !ok1 {
		return
	}
	return int(slot64), offset != 0, true
}

// StridesBufferName is the name of the buffer holding the strides of the slot-th access to leaf.
func StridesBufferName(leaf string, slot int) string {
	return fmt.Sprintf("%s.s%d", leaf, slot)
}

// OffsetVarName is the name of the variable holding the base offset of the slot-th access to leaf.
func OffsetVarName(leaf string, slot int) string {
	return fmt.Sprintf("%s.o%d", leaf, slot)
}

// LoopVarName returns the final name of the loop variable at the given nesting depth.
func LoopVarName(depth int) string {
	return fmt.Sprintf("i%d", depth)
}
