// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/support/sets"
)

// Substitute replaces every variable whose name is in the mapping by the mapped expression.
//
// Substitution is by name only: let-bound names are replaced too, so callers must not reuse names
// of bound variables as keys.
func Substitute(e Expr, mapping map[string]Expr) Expr {
	if len(mapping) == 0 {
		return e
	}
	return e.AcceptMutate(MutatorFunc(func(node Expr) Expr {
		if v, ok := node.(*Variable); ok {
			if replacement, found := mapping[v.name]; found {
				return replacement
			}
		}
		return node
	}))
}

// Simplify folds constant sub-expressions and removes trivial identities:
// x+0, 0+x, x-0, x*1, 1*x, x/1, x*0 and 0*x (integers only), selects on a constant condition
// and casts of literals.
//
// Identities are only applied if they don't change the dtype of the expression.
func Simplify(e Expr) Expr {
	return e.AcceptMutate(simplifier{})
}

type simplifier struct{}

func (simplifier) Mutate(e Expr) Expr {
	switch x := e.(type) {
	case *Binary:
		return simplifyBinary(x)
	case *Select:
		if IsLiteral(x.cond) {
			if literalAsFloat(x.cond) != 0 {
				return x.onTrue
			}
			return x.onFalse
		}
	case *Cast:
		if IsLiteral(x.x) {
			if converted := convertLiteral(x.x, x.dtype); converted != nil {
				return converted
			}
		} else if x.x.DType() == x.dtype {
			return x.x
		}
	case *Not:
		switch lit := x.x.(type) {
		case *Int:
			if lit.dtype == dtypes.Bool {
				return MakeBool(lit.value == 0)
			}
			return MakeInt(lit.dtype, ^lit.value)
		case *UInt:
			return MakeUInt(lit.dtype, ^lit.value)
		}
	}
	return e
}

func simplifyBinary(e *Binary) Expr {
	lhs, rhs := e.lhs, e.rhs
	if IsLiteral(lhs) && IsLiteral(rhs) {
		if folded := foldLiterals(e.kind, lhs, rhs); folded != nil {
			return folded
		}
		return e
	}
	switch e.kind {
	case KindAdd:
		if IsConst(rhs, 0) && keepsDType(lhs, rhs) {
			return lhs
		}
		if IsConst(lhs, 0) && keepsDType(rhs, lhs) {
			return rhs
		}
	case KindSub:
		if IsConst(rhs, 0) && keepsDType(lhs, rhs) {
			return lhs
		}
	case KindMul:
		if IsConst(rhs, 1) && keepsDType(lhs, rhs) {
			return lhs
		}
		if IsConst(lhs, 1) && keepsDType(rhs, lhs) {
			return rhs
		}
		if e.dtype.IsInt() {
			if IsConst(rhs, 0) {
				return makeIntLiteral(e.dtype, 0)
			}
			if IsConst(lhs, 0) {
				return makeIntLiteral(e.dtype, 0)
			}
		}
	case KindDiv:
		if IsConst(rhs, 1) && keepsDType(lhs, rhs) {
			return lhs
		}
	}
	return e
}

// keepsDType returns whether combining x with the literal lit keeps x's dtype.
func keepsDType(x, lit Expr) bool {
	return x.DType() == dtypes.InvalidDType || dtypes.Promote(x.DType(), lit.DType()) == x.DType()
}

// FreeVars returns the variables referenced by e that are not bound inside e (by a Let or by the
// iteration variables of a Reduce), in order of first appearance and without repetitions.
//
// Buffer names of Load nodes are not included.
func FreeVars(e Expr) []*Variable {
	c := &freeVarsCollector{bound: make(map[string]int), seen: sets.Make[string]()}
	e.AcceptMut(c)
	return c.vars
}

type freeVarsCollector struct {
	bound map[string]int
	seen  sets.Set[string]
	vars  []*Variable
}

func (c *freeVarsCollector) Enter(e Expr) bool {
	switch x := e.(type) {
	case *Variable:
		if c.bound[x.name] == 0 && !c.seen.Has(x.name) {
			c.seen.Insert(x.name)
			c.vars = append(c.vars, x)
		}
	case *Let:
		x.value.AcceptMut(c)
		c.bound[x.variable.name]++
		x.body.AcceptMut(c)
		c.bound[x.variable.name]--
		return false
	case *Reduce:
		for _, id := range x.identity {
			id.AcceptMut(c)
		}
		for _, iv := range x.iters {
			iv.Start.AcceptMut(c)
			iv.End.AcceptMut(c)
			iv.Step.AcceptMut(c)
		}
		for _, iv := range x.iters {
			c.bound[iv.Var.name]++
		}
		for _, v := range x.values {
			v.AcceptMut(c)
		}
		for _, iv := range x.iters {
			c.bound[iv.Var.name]--
		}
		return false
	}
	return true
}

func (c *freeVarsCollector) Leave(Expr) {}
