// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stage

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/stmt"
)

// Lower converts body (usually the root Stage of an output tensor) into a statement tree.
//
// Stages become nested For loops; a ReduceStage becomes "inits; for r... { bodies }; posts".
// Then loop variables are renamed to i0, i1, ... by nesting depth, and each leaf access marker
// (see AccessMarker) is resolved into the strided index
//
//	Σ_k loopVar_k * %{leaf}.s{slot}[k] (+ %{leaf}.o{slot})
//
// over all enclosing loop variables, outermost first.
func Lower(body Body) stmt.Stmt {
	return finalize(structure(body), nil)
}

// structure builds the loops of body, keeping the provisional loop variables and access markers.
func structure(body Body) stmt.Stmt {
	switch b := body.(type) {
	case *StmtBody:
		return b.Stmt
	case *Stage:
		return BuildNestedFor(b.Dims, structureAll(b.Bodies))
	case *ReduceStage:
		return stmt.MakeSeq(
			structureAll(b.Inits),
			BuildNestedFor(b.Dims, structureAll(b.Bodies)),
			structureAll(b.Posts))
	}
	exceptions.Panicf("stage.Lower: unknown body type %T", body)
	panic(nil) // Quiet linter.
}

func structureAll(bodies []Body) stmt.Stmt {
	stmts := make([]stmt.Stmt, len(bodies))
	for ii, body := range bodies {
		stmts[ii] = structure(body)
	}
	return stmt.MakeSeq(stmts...)
}

// finalize renames loop variables and resolves access markers, given the (already renamed)
// enclosing loop variables.
func finalize(s stmt.Stmt, loopVars []*expr.Variable) stmt.Stmt {
	resolve := func(e expr.Expr) expr.Expr {
		return resolveAccesses(e, loopVars)
	}
	switch s := s.(type) {
	case *stmt.For:
		loopVar := expr.MakeTypedVar(LoopVarName(len(loopVars)), s.Var.DType())
		body := stmt.Substitute(s.Body, map[string]expr.Expr{s.Var.Name(): loopVar})
		inner := append(slices.Clip(loopVars), loopVar)
		return &stmt.For{
			Var:   loopVar,
			Start: resolve(s.Start),
			End:   resolve(s.End),
			Step:  resolve(s.Step),
			Body:  finalize(body, inner),
		}
	case *stmt.LetStmt:
		return &stmt.LetStmt{Var: s.Var, Value: resolve(s.Value), Body: finalize(s.Body, loopVars)}
	case *stmt.IfThenElse:
		return &stmt.IfThenElse{Cond: resolve(s.Cond), Then: finalize(s.Then, loopVars), Else: finalize(s.Else, loopVars)}
	case *stmt.Seq:
		stmts := make([]stmt.Stmt, len(s.Stmts))
		for ii, inner := range s.Stmts {
			stmts[ii] = finalize(inner, loopVars)
		}
		return stmt.MakeSeq(stmts...)
	}
	// Statements without sub-statements.
	return stmt.MapExprs(s, resolve)
}

// resolveAccesses replaces the loads indexed by an access marker with the strided index.
func resolveAccesses(e expr.Expr, loopVars []*expr.Variable) expr.Expr {
	return e.AcceptMutate(expr.MutatorFunc(func(node expr.Expr) expr.Expr {
		load, ok := node.(*expr.Load)
		if !ok {
			return node
		}
		slot, withOffset, isMarker := IsAccessMarker(load.Index())
		if !isMarker {
			return node
		}
		leaf := load.Buffer().Name()
		return expr.MakeLoad(load.DType(), leaf, AccessIndex(leaf, slot, withOffset, loopVars))
	}))
}

// AccessIndex returns the index of the slot-th access to leaf, given the enclosing loop variables.
func AccessIndex(leaf string, slot int, withOffset bool, loopVars []*expr.Variable) expr.Expr {
	strides := StridesBufferName(leaf, slot)
	var index expr.Expr
	for k, loopVar := range loopVars {
		term := expr.Times(loopVar, expr.MakeLoad(dtypes.Int64, strides, k))
		if index == nil {
			index = term
		} else {
			index = expr.Plus(index, term)
		}
	}
	if withOffset {
		offset := expr.MakeVar(OffsetVarName(leaf, slot))
		if index == nil {
			index = offset
		} else {
			index = expr.Plus(index, offset)
		}
	}
	if index == nil {
		index = expr.MakeInt(dtypes.Int64, 0)
	}
	return index
}
