// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"maps"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Env maps symbolic names (dimension sizes, loop indices) to concrete values.
// It is the boundary between symbolic shapes and the concrete shapes known at run time.
type Env map[string]int64

// IdxEvaluator evaluates integer (index) expressions under an Env.
//
// It supports literals (floats only if integral), variables, arithmetic, comparisons (1 for true,
// 0 for false), bitwise operations, Not, Select, Cast to integer dtypes and Let. Loads, calls,
// strings and reductions can't be evaluated.
//
// It is a MutVisitor: values are pushed on a stack as nodes are left.
type IdxEvaluator struct {
	env   Env
	stack []int64
	err   error
}

// NewIdxEvaluator creates an evaluator for the given environment. The environment is not modified.
func NewIdxEvaluator(env Env) *IdxEvaluator {
	return &IdxEvaluator{env: env}
}

// EvalInt evaluates e under env.
func EvalInt(e Expr, env Env) (int64, error) {
	return NewIdxEvaluator(env).Eval(e)
}

// Eval evaluates e. The evaluator can be reused for several expressions.
func (ev *IdxEvaluator) Eval(e Expr) (int64, error) {
	ev.stack = ev.stack[:0]
	ev.err = nil
	e.AcceptMut(ev)
	if ev.err != nil {
		return 0, ev.err
	}
	if len(ev.stack) != 1 {
		return 0, errors.Errorf("internal error: evaluation of %s left %d values in the stack", e, len(ev.stack))
	}
	return ev.stack[0], nil
}

func (ev *IdxEvaluator) push(v int64) {
	ev.stack = append(ev.stack, v)
}

func (ev *IdxEvaluator) pop() int64 {
	var v int64
	v, ev.stack = xslices.Pop(ev.stack)
	return v
}

func (ev *IdxEvaluator) fail(err error) {
	if ev.err == nil {
		ev.err = err
	}
}

// Enter implements MutVisitor.
func (ev *IdxEvaluator) Enter(e Expr) bool {
	if ev.err != nil {
		return false
	}
	switch x := e.(type) {
	case *Let:
		value, err := NewIdxEvaluator(ev.env).Eval(x.value)
		if err != nil {
			ev.fail(err)
			return false
		}
		inner := maps.Clone(ev.env)
		if inner == nil {
			inner = make(Env)
		}
		inner[x.variable.name] = value
		body, err := NewIdxEvaluator(inner).Eval(x.body)
		if err != nil {
			ev.fail(err)
			return false
		}
		ev.push(body)
		return false
	case *Str, *Load, *Call, *Reduce, *None:
		ev.fail(errors.Errorf("cannot evaluate %s expression %s as an index", e.Kind(), e))
		return false
	}
	return true
}

// Leave implements MutVisitor.
func (ev *IdxEvaluator) Leave(e Expr) {
	if ev.err != nil {
		return
	}
	switch x := e.(type) {
	case *Int:
		ev.push(x.value)
	case *UInt:
		ev.push(int64(x.value))
	case *Float:
		if x.value != float64(int64(x.value)) {
			ev.fail(errors.Errorf("cannot evaluate non-integral float %s as an index", x))
			return
		}
		ev.push(int64(x.value))
	case *Variable:
		value, found := ev.env[x.name]
		if !found {
			ev.fail(errors.Errorf("variable %q not defined in the environment", x.name))
			return
		}
		ev.push(value)
	case *Binary:
		rhs := ev.pop()
		lhs := ev.pop()
		result, err := evalBinary(x.kind, lhs, rhs)
		if err != nil {
			ev.fail(errors.WithMessagef(err, "evaluating %s", x))
			return
		}
		ev.push(result)
	case *Not:
		v := ev.pop()
		switch {
		case x.DType() == dtypes.Bool:
			if v == 0 {
				ev.push(1)
			} else {
				ev.push(0)
			}
		case x.DType().IsInt():
			ev.push(^v)
		default:
			ev.fail(errors.Errorf("cannot evaluate %s as an index", x))
		}
	case *Cast:
		v := ev.pop()
		switch {
		case x.dtype == dtypes.Bool:
			if v != 0 {
				ev.push(1)
			} else {
				ev.push(0)
			}
		case x.dtype.IsInt():
			ev.push(literalAsInt(makeIntLiteral(x.dtype, v)))
		default:
			ev.fail(errors.Errorf("cannot evaluate cast to %s as an index", x.dtype))
		}
	case *Select:
		onFalse := ev.pop()
		onTrue := ev.pop()
		cond := ev.pop()
		if cond != 0 {
			ev.push(onTrue)
		} else {
			ev.push(onFalse)
		}
	}
}

func evalBinary(kind Kind, lhs, rhs int64) (int64, error) {
	boolToInt := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch kind {
	case KindAdd:
		return lhs + rhs, nil
	case KindSub:
		return lhs - rhs, nil
	case KindMul:
		return lhs * rhs, nil
	case KindDiv:
		if rhs == 0 {
			return 0, errors.New("division by zero")
		}
		return lhs / rhs, nil
	case KindMod:
		if rhs == 0 {
			return 0, errors.New("remainder by zero")
		}
		return lhs % rhs, nil
	case KindMin:
		return min(lhs, rhs), nil
	case KindMax:
		return max(lhs, rhs), nil
	case KindEq:
		return boolToInt(lhs == rhs), nil
	case KindNe:
		return boolToInt(lhs != rhs), nil
	case KindLt:
		return boolToInt(lhs < rhs), nil
	case KindLe:
		return boolToInt(lhs <= rhs), nil
	case KindGt:
		return boolToInt(lhs > rhs), nil
	case KindGe:
		return boolToInt(lhs >= rhs), nil
	case KindAnd:
		return lhs & rhs, nil
	case KindOr:
		return lhs | rhs, nil
	case KindXor:
		return lhs ^ rhs, nil
	case KindShl, KindShr:
		if rhs < 0 {
			return 0, errors.New("negative shift count")
		}
		if kind == KindShl {
			return lhs << rhs, nil
		}
		return lhs >> rhs, nil
	}
	return 0, errors.Errorf("unknown binary operation %s", kind)
}
