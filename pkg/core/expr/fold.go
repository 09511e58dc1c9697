// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"cmp"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
)

// Plus returns a+b: if both are numeric literals the sum is computed (with dtype promotion, so
// Int(2)+Float(1.5) is Float(3.5)), otherwise an Add node is built.
//
// Operands are converted with AsExpr. String literals, None and Reduce nodes can't be added, and
// trying to do so panics.
func Plus(a, b any) Expr { return fold(KindAdd, a, b) }

// Minus returns a-b, folding literals like Plus.
func Minus(a, b any) Expr { return fold(KindSub, a, b) }

// Times returns a*b, folding literals like Plus.
func Times(a, b any) Expr { return fold(KindMul, a, b) }

// Quo returns a/b, folding literals like Plus. Integer division truncates, and integer division
// of literals by zero panics.
func Quo(a, b any) Expr { return fold(KindDiv, a, b) }

// Rem returns a%b, folding literals like Plus.
func Rem(a, b any) Expr { return fold(KindMod, a, b) }

// MinOf returns min(a, b), folding literals like Plus.
func MinOf(a, b any) Expr { return fold(KindMin, a, b) }

// MaxOf returns max(a, b), folding literals like Plus.
func MaxOf(a, b any) Expr { return fold(KindMax, a, b) }

var foldVerbs = map[Kind]string{
	KindAdd: "add",
	KindSub: "subtract",
	KindMul: "multiply",
	KindDiv: "divide",
	KindMod: "take the remainder of",
	KindMin: "take the min of",
	KindMax: "take the max of",
}

// foldable returns whether the expression can take part in arithmetic.
func foldable(e Expr) bool {
	switch e.Kind() {
	case KindStr, KindNone, KindReduce:
		return false
	}
	return true
}

func fold(kind Kind, a, b any) Expr {
	lhs, rhs := AsExpr(a), AsExpr(b)
	if !foldable(lhs) || !foldable(rhs) {
		exceptions.Panicf("cannot %s these expr kinds: %s and %s", foldVerbs[kind], lhs.Kind(), rhs.Kind())
	}
	if IsLiteral(lhs) && IsLiteral(rhs) {
		if result := foldLiterals(kind, lhs, rhs); result != nil {
			return result
		}
	}
	return makeBinary(kind, lhs, rhs)
}

// foldLiterals computes the binary operation on two numeric literals.
// It returns nil if the operation is not defined for the promoted dtype (e.g. bitwise ops on floats).
func foldLiterals(kind Kind, lhs, rhs Expr) Expr {
	dtype := dtypes.Promote(lhs.DType(), rhs.DType())
	if kind == KindShl || kind == KindShr {
		dtype = lhs.DType()
		if dtype.IsFloat() {
			return nil
		}
	}
	if dtype.IsComplex() || dtype == dtypes.InvalidDType {
		return nil
	}
	if kind.IsComparison() {
		var order int
		switch {
		case dtype.IsFloat():
			x, y := literalAsFloat(lhs), literalAsFloat(rhs)
			if math.IsNaN(x) || math.IsNaN(y) {
				return MakeBool(kind == KindNe)
			}
			order = cmp.Compare(x, y)
		case dtype.IsUnsigned():
			order = cmp.Compare(uint64(literalAsInt(lhs)), uint64(literalAsInt(rhs)))
		default:
			order = cmp.Compare(literalAsInt(lhs), literalAsInt(rhs))
		}
		return MakeBool(comparisonHolds(kind, order))
	}

	if dtype.IsFloat() {
		x, y := literalAsFloat(lhs), literalAsFloat(rhs)
		var r float64
		switch kind {
		case KindAdd:
			r = x + y
		case KindSub:
			r = x - y
		case KindMul:
			r = x * y
		case KindDiv:
			r = x / y
		case KindMod:
			r = math.Mod(x, y)
		case KindMin:
			r = math.Min(x, y)
		case KindMax:
			r = math.Max(x, y)
		default:
			return nil
		}
		return MakeFloat(dtype, r)
	}

	if dtype.IsUnsigned() {
		x, y := MakeUInt(dtype, uint64(literalAsInt(lhs))), MakeUInt(dtype, uint64(literalAsInt(rhs)))
		switch kind {
		case KindAdd:
			return x.Add(y)
		case KindSub:
			return x.Sub(y)
		case KindMul:
			return x.Mul(y)
		case KindDiv:
			return x.Div(y)
		case KindMod:
			return x.Rem(y)
		case KindMin:
			return MakeUInt(dtype, min(x.value, y.value))
		case KindMax:
			return MakeUInt(dtype, max(x.value, y.value))
		case KindAnd:
			return MakeUInt(dtype, x.value&y.value)
		case KindOr:
			return MakeUInt(dtype, x.value|y.value)
		case KindXor:
			return MakeUInt(dtype, x.value^y.value)
		case KindShl:
			return MakeUInt(dtype, x.value<<y.value)
		case KindShr:
			return MakeUInt(dtype, x.value>>y.value)
		}
		return nil
	}

	// Signed integers and Bool.
	x, y := MakeInt(dtype, literalAsInt(lhs)), MakeInt(dtype, literalAsInt(rhs))
	switch kind {
	case KindAdd:
		return x.Add(y)
	case KindSub:
		return x.Sub(y)
	case KindMul:
		return x.Mul(y)
	case KindDiv:
		return x.Div(y)
	case KindMod:
		return x.Rem(y)
	case KindMin:
		return MakeInt(dtype, min(x.value, y.value))
	case KindMax:
		return MakeInt(dtype, max(x.value, y.value))
	case KindAnd:
		return MakeInt(dtype, x.value&y.value)
	case KindOr:
		return MakeInt(dtype, x.value|y.value)
	case KindXor:
		return MakeInt(dtype, x.value^y.value)
	case KindShl, KindShr:
		if y.value < 0 {
			exceptions.Panicf("expr: negative shift count in %s %s %s", lhs, kind.Symbol(), rhs)
		}
		if kind == KindShl {
			return MakeInt(dtype, x.value<<y.value)
		}
		return MakeInt(dtype, x.value>>y.value)
	}
	return nil
}

func comparisonHolds(kind Kind, order int) bool {
	switch kind {
	case KindEq:
		return order == 0
	case KindNe:
		return order != 0
	case KindLt:
		return order < 0
	case KindLe:
		return order <= 0
	case KindGt:
		return order > 0
	case KindGe:
		return order >= 0
	}
	return false
}
