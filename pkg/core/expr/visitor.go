// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

// Visitor is the read-only traversal protocol, in the style of go/ast.
//
// Visit is called for each node in pre-order. If it returns a non-nil visitor w, the children of
// the node are visited with w; returning nil skips the children.
type Visitor interface {
	Visit(e Expr) (w Visitor)
}

// MutVisitor is the traversal protocol for visitors that accumulate state (e.g. an evaluation stack).
//
// Enter is called before the children of a node and returns whether they should be visited.
// Leave is always called after them, even if Enter returned false.
type MutVisitor interface {
	Enter(e Expr) (descend bool)
	Leave(e Expr)
}

// Mutator rewrites nodes. See Expr.AcceptMutate.
type Mutator interface {
	Mutate(e Expr) Expr
}

// MutatorFunc adapts a function to a Mutator.
type MutatorFunc func(e Expr) Expr

// Mutate implements Mutator.
func (fn MutatorFunc) Mutate(e Expr) Expr { return fn(e) }

type inspector func(Expr) bool

func (fn inspector) Visit(e Expr) Visitor {
	if fn(e) {
		return fn
	}
	return nil
}

// Inspect traverses e in pre-order, calling fn for each node. If fn returns false the children of
// the node are skipped.
func Inspect(e Expr, fn func(Expr) bool) {
	e.Accept(inspector(fn))
}

// Accept

func (e *Int) Accept(v Visitor)      { v.Visit(e) }
func (e *UInt) Accept(v Visitor)     { v.Visit(e) }
func (e *Float) Accept(v Visitor)    { v.Visit(e) }
func (e *Str) Accept(v Visitor)      { v.Visit(e) }
func (e *Variable) Accept(v Visitor) { v.Visit(e) }
func (e *None) Accept(v Visitor)     { v.Visit(e) }

func (e *Binary) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.lhs.Accept(w)
		e.rhs.Accept(w)
	}
}

func (e *Not) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.x.Accept(w)
	}
}

func (e *Cast) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.x.Accept(w)
	}
}

func (e *Call) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		for _, arg := range e.args {
			arg.Accept(w)
		}
	}
}

func (e *Select) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.cond.Accept(w)
		e.onTrue.Accept(w)
		e.onFalse.Accept(w)
	}
}

func (e *Let) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.variable.Accept(w)
		e.value.Accept(w)
		e.body.Accept(w)
	}
}

func (e *Load) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		e.buffer.Accept(w)
		e.index.Accept(w)
	}
}

func (e *Reduce) Accept(v Visitor) {
	if w := v.Visit(e); w != nil {
		for _, x := range e.identity {
			x.Accept(w)
		}
		for _, iv := range e.iters {
			iv.Var.Accept(w)
			iv.Start.Accept(w)
			iv.End.Accept(w)
			iv.Step.Accept(w)
		}
		for _, x := range e.values {
			x.Accept(w)
		}
	}
}

// AcceptMut

func (e *Int) AcceptMut(v MutVisitor)      { v.Enter(e); v.Leave(e) }
func (e *UInt) AcceptMut(v MutVisitor)     { v.Enter(e); v.Leave(e) }
func (e *Float) AcceptMut(v MutVisitor)    { v.Enter(e); v.Leave(e) }
func (e *Str) AcceptMut(v MutVisitor)      { v.Enter(e); v.Leave(e) }
func (e *Variable) AcceptMut(v MutVisitor) { v.Enter(e); v.Leave(e) }
func (e *None) AcceptMut(v MutVisitor)     { v.Enter(e); v.Leave(e) }

func (e *Binary) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.lhs.AcceptMut(v)
		e.rhs.AcceptMut(v)
	}
	v.Leave(e)
}

func (e *Not) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.x.AcceptMut(v)
	}
	v.Leave(e)
}

func (e *Cast) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.x.AcceptMut(v)
	}
	v.Leave(e)
}

func (e *Call) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		for _, arg := range e.args {
			arg.AcceptMut(v)
		}
	}
	v.Leave(e)
}

func (e *Select) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.cond.AcceptMut(v)
		e.onTrue.AcceptMut(v)
		e.onFalse.AcceptMut(v)
	}
	v.Leave(e)
}

// AcceptMut on a Let visits only the value and the body: the bound variable is not a use.
func (e *Let) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.value.AcceptMut(v)
		e.body.AcceptMut(v)
	}
	v.Leave(e)
}

func (e *Load) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		e.index.AcceptMut(v)
	}
	v.Leave(e)
}

func (e *Reduce) AcceptMut(v MutVisitor) {
	if v.Enter(e) {
		for _, x := range e.identity {
			x.AcceptMut(v)
		}
		for _, iv := range e.iters {
			iv.Start.AcceptMut(v)
			iv.End.AcceptMut(v)
			iv.Step.AcceptMut(v)
		}
		for _, x := range e.values {
			x.AcceptMut(v)
		}
	}
	v.Leave(e)
}

// AcceptMutate

func (e *Int) AcceptMutate(m Mutator) Expr      { return m.Mutate(e) }
func (e *UInt) AcceptMutate(m Mutator) Expr     { return m.Mutate(e) }
func (e *Float) AcceptMutate(m Mutator) Expr    { return m.Mutate(e) }
func (e *Str) AcceptMutate(m Mutator) Expr      { return m.Mutate(e) }
func (e *Variable) AcceptMutate(m Mutator) Expr { return m.Mutate(e) }
func (e *None) AcceptMutate(m Mutator) Expr     { return m.Mutate(e) }

func (e *Binary) AcceptMutate(m Mutator) Expr {
	lhs, rhs := e.lhs.AcceptMutate(m), e.rhs.AcceptMutate(m)
	if lhs == e.lhs && rhs == e.rhs {
		return m.Mutate(e)
	}
	return m.Mutate(makeBinary(e.kind, lhs, rhs))
}

func (e *Not) AcceptMutate(m Mutator) Expr {
	x := e.x.AcceptMutate(m)
	if x == e.x {
		return m.Mutate(e)
	}
	return m.Mutate(&Not{x: x})
}

func (e *Cast) AcceptMutate(m Mutator) Expr {
	x := e.x.AcceptMutate(m)
	if x == e.x {
		return m.Mutate(e)
	}
	return m.Mutate(&Cast{x: x, dtype: e.dtype})
}

func (e *Call) AcceptMutate(m Mutator) Expr {
	args, changed := mutateSlice(e.args, m)
	if !changed {
		return m.Mutate(e)
	}
	return m.Mutate(&Call{name: e.name, args: args, dtype: e.dtype})
}

func (e *Select) AcceptMutate(m Mutator) Expr {
	cond, onTrue, onFalse := e.cond.AcceptMutate(m), e.onTrue.AcceptMutate(m), e.onFalse.AcceptMutate(m)
	if cond == e.cond && onTrue == e.onTrue && onFalse == e.onFalse {
		return m.Mutate(e)
	}
	return m.Mutate(&Select{cond: cond, onTrue: onTrue, onFalse: onFalse})
}

// AcceptMutate on a Let mutates only the value and the body: the binder is kept.
func (e *Let) AcceptMutate(m Mutator) Expr {
	value, body := e.value.AcceptMutate(m), e.body.AcceptMutate(m)
	if value == e.value && body == e.body {
		return m.Mutate(e)
	}
	return m.Mutate(&Let{variable: e.variable, value: value, body: body})
}

func (e *Load) AcceptMutate(m Mutator) Expr {
	index := e.index.AcceptMutate(m)
	if index == e.index {
		return m.Mutate(e)
	}
	return m.Mutate(&Load{buffer: e.buffer, index: index, dtype: e.dtype})
}

func (e *Reduce) AcceptMutate(m Mutator) Expr {
	identity, changed := mutateSlice(e.identity, m)
	values, valuesChanged := mutateSlice(e.values, m)
	changed = changed || valuesChanged
	var iters []*IterVar
	for ii, iv := range e.iters {
		start, end, step := iv.Start.AcceptMutate(m), iv.End.AcceptMutate(m), iv.Step.AcceptMutate(m)
		if start == iv.Start && end == iv.End && step == iv.Step {
			continue
		}
		if iters == nil {
			iters = make([]*IterVar, len(e.iters))
			copy(iters, e.iters)
		}
		iters[ii] = &IterVar{Var: iv.Var, Start: start, End: end, Step: step}
	}
	if iters == nil {
		iters = e.iters
	} else {
		changed = true
	}
	if !changed {
		return m.Mutate(e)
	}
	return m.Mutate(&Reduce{op: e.op, identity: identity, iters: iters, values: values})
}

// mutateSlice mutates each expression, and returns a new slice only if any of them changed.
func mutateSlice(exprs []Expr, m Mutator) ([]Expr, bool) {
	var result []Expr
	for ii, x := range exprs {
		y := x.AcceptMutate(m)
		if y != x && result == nil {
			result = make([]Expr, len(exprs))
			copy(result, exprs)
		}
		if result != nil {
			result[ii] = y
		}
	}
	if result == nil {
		return exprs, false
	}
	return result, true
}
