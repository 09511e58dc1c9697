// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stmt

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/expr"
)

// Walk visits s and its sub-statements in pre-order (the order they are printed).
// If fn returns false, the children of that statement are skipped. Empty statements are not visited.
func Walk(s Stmt, fn func(s Stmt) bool) {
	if IsNone(s) || !fn(s) {
		return
	}
	switch s := s.(type) {
	case *For:
		Walk(s.Body, fn)
	case *LetStmt:
		Walk(s.Body, fn)
	case *IfThenElse:
		Walk(s.Then, fn)
		Walk(s.Else, fn)
	case *Seq:
		for _, inner := range s.Stmts {
			Walk(inner, fn)
		}
	}
}

// ExprMutate applies the mutator to every expression of the statement tree, and returns the
// rewritten tree. Statements are only rebuilt if one of their expressions or sub-statements
// changed.
//
// Binders (the variables of For, LetStmt and Assign, and the buffer of Store) are not mutated.
func ExprMutate(s Stmt, m expr.Mutator) Stmt {
	return MapExprs(s, func(e expr.Expr) expr.Expr { return e.AcceptMutate(m) })
}

// MapExprs replaces every expression e of the statement tree by fn(e), and returns the
// rewritten tree. See ExprMutate.
func MapExprs(s Stmt, fn func(e expr.Expr) expr.Expr) Stmt {
	mutate := func(e expr.Expr) (expr.Expr, bool) {
		mutated := fn(e)
		return mutated, mutated != e
	}
	switch s := s.(type) {
	case *For:
		start, c0 := mutate(s.Start)
		end, c1 := mutate(s.End)
		step, c2 := mutate(s.Step)
		body := MapExprs(s.Body, fn)
		if !c0 && !c1 && !c2 && body == s.Body {
			return s
		}
		return &For{Var: s.Var, Start: start, End: end, Step: step, Body: body}
	case *LetStmt:
		value, c0 := mutate(s.Value)
		body := MapExprs(s.Body, fn)
		if !c0 && body == s.Body {
			return s
		}
		return &LetStmt{Var: s.Var, Value: value, Body: body}
	case *Store:
		index, c0 := mutate(s.Index)
		value, c1 := mutate(s.Value)
		if !c0 && !c1 {
			return s
		}
		return &Store{Buffer: s.Buffer, Index: index, Value: value}
	case *IfThenElse:
		cond, c0 := mutate(s.Cond)
		onTrue, onFalse := MapExprs(s.Then, fn), MapExprs(s.Else, fn)
		if !c0 && onTrue == s.Then && onFalse == s.Else {
			return s
		}
		return &IfThenElse{Cond: cond, Then: onTrue, Else: onFalse}
	case *Seq:
		var stmts []Stmt
		for ii, inner := range s.Stmts {
			mutated := MapExprs(inner, fn)
			if mutated != inner && stmts == nil {
				stmts = make([]Stmt, len(s.Stmts))
				copy(stmts, s.Stmts[:ii])
			}
			if stmts != nil {
				stmts[ii] = mutated
			}
		}
		if stmts == nil {
			return s
		}
		return &Seq{Stmts: stmts}
	case *InplaceAdd:
		target, c0 := mutate(s.Target)
		delta, c1 := mutate(s.Delta)
		if !c0 && !c1 {
			return s
		}
		return &InplaceAdd{Target: target, Delta: delta}
	case *InplaceMul:
		target, c0 := mutate(s.Target)
		factor, c1 := mutate(s.Factor)
		if !c0 && !c1 {
			return s
		}
		return &InplaceMul{Target: target, Factor: factor}
	case *Assign:
		value, c0 := mutate(s.Value)
		if !c0 {
			return s
		}
		return &Assign{Target: s.Target, Value: value}
	case *None:
		return s
	}
	exceptions.Panicf("stmt.MapExprs: unknown statement type %T", s)
	panic(nil) // Quiet linter.
}

// Substitute replaces the named variables in every expression of the tree (see expr.Substitute).
func Substitute(s Stmt, mapping map[string]expr.Expr) Stmt {
	if len(mapping) == 0 {
		return s
	}
	return MapExprs(s, func(e expr.Expr) expr.Expr {
		return expr.Substitute(e, mapping)
	})
}

// CountLoops returns the number of For statements in the tree, and the maximum nesting depth.
func CountLoops(s Stmt) (count, depth int) {
	var visit func(s Stmt, level int)
	visit = func(s Stmt, level int) {
		Walk(s, func(inner Stmt) bool {
			if loop, ok := inner.(*For); ok {
				count++
				depth = max(depth, level+1)
				visit(loop.Body, level+1)
				return false
			}
			return true
		})
	}
	visit(s, 0)
	return
}
