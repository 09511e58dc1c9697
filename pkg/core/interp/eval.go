// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interp

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/stmt"
)

// scope holds the variables bound by lets and loops of one block.
type scope struct {
	vars   map[string]float64
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]float64), parent: parent}
}

// owner returns the innermost scope that binds name, or nil.
func (s *scope) owner(name string) *scope {
	for ; s != nil; s = s.parent {
		if _, found := s.vars[name]; found {
			return s
		}
	}
	return nil
}

// machine executes the statement tree of one kernel.
//
// Variables are resolved in the lexical scopes first, then in the kernel scalars (the offsets of
// the accesses) and finally in the dimensions environment.
type machine struct {
	kernel  string
	env     expr.Env
	scalars map[string]float64
	buffers map[string][]float64
}

// mathFuncs are the primitives that can be called by name.
var mathFuncs = map[string]func(args []float64) float64{
	"sin":     func(args []float64) float64 { return math.Sin(args[0]) },
	"cos":     func(args []float64) float64 { return math.Cos(args[0]) },
	"tan":     func(args []float64) float64 { return math.Tan(args[0]) },
	"exp":     func(args []float64) float64 { return math.Exp(args[0]) },
	"log":     func(args []float64) float64 { return math.Log(args[0]) },
	"sqrt":    func(args []float64) float64 { return math.Sqrt(args[0]) },
	"tanh":    func(args []float64) float64 { return math.Tanh(args[0]) },
	"sigmoid": func(args []float64) float64 { return 1 / (1 + math.Exp(-args[0])) },
	"abs":     func(args []float64) float64 { return math.Abs(args[0]) },
	"neg":     func(args []float64) float64 { return -args[0] },
	"pow":     func(args []float64) float64 { return math.Pow(args[0], args[1]) },
}

var mathArity = map[string]int{"pow": 2}

func (m *machine) exec(s stmt.Stmt, sc *scope) {
	switch x := s.(type) {
	case *stmt.None:
	case *stmt.Seq:
		for _, sub := range x.Stmts {
			m.exec(sub, sc)
		}
	case *stmt.For:
		start, end, step := m.index(x.Start, sc), m.index(x.End, sc), m.index(x.Step, sc)
		if step <= 0 {
			exceptions.Panicf("kernel %s: loop over %s with non-positive step %d", m.kernel, x.Var, step)
		}
		inner := newScope(sc)
		name := x.Var.Name()
		for ii := start; ii < end; ii += step {
			clear(inner.vars)
			inner.vars[name] = float64(ii)
			m.exec(x.Body, inner)
		}
	case *stmt.LetStmt:
		value := convert(x.Var.DType(), m.eval(x.Value, sc))
		if stmt.IsNone(x.Body) {
			sc.vars[x.Var.Name()] = value
			return
		}
		inner := newScope(sc)
		inner.vars[x.Var.Name()] = value
		m.exec(x.Body, inner)
	case *stmt.Store:
		data := m.buffer(x.Buffer.Name())
		index := m.bounded(x.Buffer.Name(), data, m.index(x.Index, sc))
		data[index] = convert(x.Buffer.DType(), m.eval(x.Value, sc))
	case *stmt.IfThenElse:
		if m.eval(x.Cond, sc) != 0 {
			m.exec(x.Then, newScope(sc))
		} else if !stmt.IsNone(x.Else) {
			m.exec(x.Else, newScope(sc))
		}
	case *stmt.InplaceAdd:
		delta := m.eval(x.Delta, sc)
		m.update(x.Target, sc, func(old float64) float64 { return old + delta })
	case *stmt.InplaceMul:
		factor := m.eval(x.Factor, sc)
		m.update(x.Target, sc, func(old float64) float64 { return old * factor })
	case *stmt.Assign:
		value := m.eval(x.Value, sc)
		m.update(x.Target, sc, func(float64) float64 { return value })
	default:
		exceptions.Panicf("kernel %s: can't execute statement %T", m.kernel, s)
	}
}

// update replaces the value of target, a let-bound variable or a buffer element, by fn(old).
func (m *machine) update(target expr.Expr, sc *scope, fn func(old float64) float64) {
	switch t := target.(type) {
	case *expr.Variable:
		owner := sc.owner(t.Name())
		if owner == nil {
			exceptions.Panicf("kernel %s: update of variable %q not bound in scope", m.kernel, t.Name())
		}
		owner.vars[t.Name()] = convert(t.DType(), fn(owner.vars[t.Name()]))
	case *expr.Load:
		data := m.buffer(t.Buffer().Name())
		index := m.bounded(t.Buffer().Name(), data, m.index(t.Index(), sc))
		data[index] = convert(t.DType(), fn(data[index]))
	default:
		exceptions.Panicf("kernel %s: can't update %s expression %s", m.kernel, target.Kind(), target)
	}
}

func (m *machine) buffer(name string) []float64 {
	data, found := m.buffers[name]
	if !found {
		exceptions.Panicf("kernel %s: buffer %q not bound", m.kernel, name)
	}
	return data
}

func (m *machine) bounded(name string, data []float64, index int) int {
	if index < 0 || index >= len(data) {
		exceptions.Panicf("kernel %s: index %d out of bounds for buffer %q of %d elements", m.kernel, index, name, len(data))
	}
	return index
}

// index evaluates an integer expression.
func (m *machine) index(e expr.Expr, sc *scope) int {
	v := m.eval(e, sc)
	if v != math.Trunc(v) {
		exceptions.Panicf("kernel %s: index %s evaluated to non-integral %g", m.kernel, e, v)
	}
	return int(v)
}

func (m *machine) variable(name string, sc *scope) float64 {
	if owner := sc.owner(name); owner != nil {
		return owner.vars[name]
	}
	if v, found := m.scalars[name]; found {
		return v
	}
	if v, found := m.env[name]; found {
		return float64(v)
	}
	exceptions.Panicf("kernel %s: variable %q not defined", m.kernel, name)
	panic(nil) // Quiet linter.
}

func (m *machine) eval(e expr.Expr, sc *scope) float64 {
	switch x := e.(type) {
	case *expr.Int:
		return float64(x.Value())
	case *expr.UInt:
		return float64(x.Value())
	case *expr.Float:
		return x.Value()
	case *expr.Variable:
		return m.variable(x.Name(), sc)
	case *expr.Binary:
		return m.binary(x.Op(), x.DType(), m.eval(x.Lhs(), sc), m.eval(x.Rhs(), sc))
	case *expr.Not:
		v := m.eval(x.X(), sc)
		if x.DType() == dtypes.Bool {
			return boolean(v == 0)
		}
		return convert(x.DType(), float64(^int64(v)))
	case *expr.Cast:
		return convert(x.DType(), m.eval(x.X(), sc))
	case *expr.Call:
		fn, found := mathFuncs[x.Name()]
		if !found {
			exceptions.Panicf("kernel %s: unknown function %q in %s", m.kernel, x.Name(), x)
		}
		arity := 1
		if n, found := mathArity[x.Name()]; found {
			arity = n
		}
		if len(x.Args()) != arity {
			exceptions.Panicf("kernel %s: %q takes %d arguments, got %s", m.kernel, x.Name(), arity, x)
		}
		args := make([]float64, len(x.Args()))
		for ii, arg := range x.Args() {
			args[ii] = m.eval(arg, sc)
		}
		return convert(x.DType(), fn(args))
	case *expr.Select:
		if m.eval(x.Cond(), sc) != 0 {
			return m.eval(x.OnTrue(), sc)
		}
		return m.eval(x.OnFalse(), sc)
	case *expr.Let:
		inner := newScope(sc)
		inner.vars[x.Var().Name()] = convert(x.Var().DType(), m.eval(x.Value(), sc))
		return m.eval(x.Body(), inner)
	case *expr.Load:
		data := m.buffer(x.Buffer().Name())
		return data[m.bounded(x.Buffer().Name(), data, m.index(x.Index(), sc))]
	}
	exceptions.Panicf("kernel %s: can't evaluate %s expression %s", m.kernel, e.Kind(), e)
	panic(nil) // Quiet linter.
}

func (m *machine) binary(kind expr.Kind, dtype dtypes.DType, lhs, rhs float64) float64 {
	integral := !dtype.IsFloat()
	var v float64
	switch kind {
	case expr.KindAdd:
		v = lhs + rhs
	case expr.KindSub:
		v = lhs - rhs
	case expr.KindMul:
		v = lhs * rhs
	case expr.KindDiv:
		if integral {
			if rhs == 0 {
				exceptions.Panicf("kernel %s: integer division by zero", m.kernel)
			}
			v = math.Trunc(lhs / rhs)
		} else {
			v = lhs / rhs
		}
	case expr.KindMod:
		if integral && rhs == 0 {
			exceptions.Panicf("kernel %s: integer remainder by zero", m.kernel)
		}
		v = math.Mod(lhs, rhs)
	case expr.KindMin:
		v = math.Min(lhs, rhs)
	case expr.KindMax:
		v = math.Max(lhs, rhs)
	case expr.KindEq:
		v = boolean(lhs == rhs)
	case expr.KindNe:
		v = boolean(lhs != rhs)
	case expr.KindLt:
		v = boolean(lhs < rhs)
	case expr.KindLe:
		v = boolean(lhs <= rhs)
	case expr.KindGt:
		v = boolean(lhs > rhs)
	case expr.KindGe:
		v = boolean(lhs >= rhs)
	case expr.KindAnd:
		v = float64(int64(lhs) & int64(rhs))
	case expr.KindOr:
		v = float64(int64(lhs) | int64(rhs))
	case expr.KindXor:
		v = float64(int64(lhs) ^ int64(rhs))
	case expr.KindShl, expr.KindShr:
		if rhs < 0 {
			exceptions.Panicf("kernel %s: negative shift count %g", m.kernel, rhs)
		}
		if kind == expr.KindShl {
			v = float64(int64(lhs) << uint64(rhs))
		} else {
			v = float64(int64(lhs) >> uint64(rhs))
		}
	default:
		exceptions.Panicf("kernel %s: unknown binary operation %s", m.kernel, kind)
	}
	return convert(dtype, v)
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// convert v to the value it would have if stored in dtype: floats are rounded to their precision
// and integers are truncated toward zero and wrapped around their width.
func convert(dtype dtypes.DType, v float64) float64 {
	switch {
	case dtype == dtypes.Bool:
		return boolean(v != 0)
	case dtype.IsFloat():
		return dtypes.RoundFloat(dtype, v)
	case dtype.IsSigned():
		shift := 64 - dtype.Bits()
		return float64((int64(v) << shift) >> shift)
	case dtype.IsUnsigned():
		var u uint64
		if v >= 0 {
			u = uint64(v)
		} else {
			u = uint64(int64(v))
		}
		if bits := dtype.Bits(); bits < 64 {
			u &= (uint64(1) << bits) - 1
		}
		return float64(u)
	}
	return v
}
