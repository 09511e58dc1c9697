// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

// Equal returns whether a and b are structurally equal.
//
// Literals are equal if they have the same dtype and value. Add and Mul nodes are also equal to
// the node with swapped operands, every other binary operation is order-sensitive.
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Int:
		y := b.(*Int)
		return x.dtype == y.dtype && x.value == y.value
	case *UInt:
		y := b.(*UInt)
		return x.dtype == y.dtype && x.value == y.value
	case *Float:
		y := b.(*Float)
		return x.dtype == y.dtype && x.value == y.value
	case *Str:
		return x.value == b.(*Str).value
	case *Variable:
		y := b.(*Variable)
		return x.name == y.name && x.dtype == y.dtype
	case *Binary:
		y := b.(*Binary)
		if Equal(x.lhs, y.lhs) && Equal(x.rhs, y.rhs) {
			return true
		}
		return x.kind.IsCommutative() && Equal(x.lhs, y.rhs) && Equal(x.rhs, y.lhs)
	case *Not:
		return Equal(x.x, b.(*Not).x)
	case *Cast:
		y := b.(*Cast)
		return x.dtype == y.dtype && Equal(x.x, y.x)
	case *Call:
		y := b.(*Call)
		return x.name == y.name && x.dtype == y.dtype && equalSlices(x.args, y.args)
	case *Select:
		y := b.(*Select)
		return Equal(x.cond, y.cond) && Equal(x.onTrue, y.onTrue) && Equal(x.onFalse, y.onFalse)
	case *Let:
		y := b.(*Let)
		return Equal(x.variable, y.variable) && Equal(x.value, y.value) && Equal(x.body, y.body)
	case *Load:
		y := b.(*Load)
		return Equal(x.buffer, y.buffer) && Equal(x.index, y.index)
	case *Reduce:
		y := b.(*Reduce)
		if x.op != y.op || len(x.iters) != len(y.iters) {
			return false
		}
		for ii, iv := range x.iters {
			if !iv.Equal(y.iters[ii]) {
				return false
			}
		}
		return equalSlices(x.identity, y.identity) && equalSlices(x.values, y.values)
	case *None:
		return true
	}
	return false
}

func equalSlices(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if !Equal(a[ii], b[ii]) {
			return false
		}
	}
	return true
}
