// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
)

// MakeInt returns a signed integer literal of the given dtype.
//
// The value is truncated to the width of the dtype and sign-extended back, so it silently wraps
// around like the target's fixed-width two's-complement arithmetic: MakeInt(Int8, 200) is -56.
// For Bool any non-zero value becomes 1.
func MakeInt(dtype dtypes.DType, value int64) *Int {
	if dtype == dtypes.Bool {
		if value != 0 {
			value = 1
		}
		return &Int{dtype: dtype, value: value}
	}
	if !dtype.IsSigned() {
		exceptions.Panicf("expr.MakeInt: dtype must be a signed integer or Bool, got %s", dtype)
	}
	shift := 64 - dtype.Bits()
	return &Int{dtype: dtype, value: (value << shift) >> shift}
}

// MakeBool returns a Bool literal.
func MakeBool(value bool) *Int {
	if value {
		return MakeInt(dtypes.Bool, 1)
	}
	return MakeInt(dtypes.Bool, 0)
}

// MakeUInt returns an unsigned integer literal of the given dtype, masked to its width.
func MakeUInt(dtype dtypes.DType, value uint64) *UInt {
	if !dtype.IsUnsigned() {
		exceptions.Panicf("expr.MakeUInt: dtype must be an unsigned integer, got %s", dtype)
	}
	bits := dtype.Bits()
	if bits < 64 {
		value &= (uint64(1) << bits) - 1
	}
	return &UInt{dtype: dtype, value: value}
}

// MakeFloat returns a float literal of the given dtype, rounded to its precision.
func MakeFloat(dtype dtypes.DType, value float64) *Float {
	if !dtype.IsFloat() {
		exceptions.Panicf("expr.MakeFloat: dtype must be a float, got %s", dtype)
	}
	return &Float{dtype: dtype, value: dtypes.RoundFloat(dtype, value)}
}

// Add returns e+other as a literal of e's dtype, wrapping around.
func (e *Int) Add(other *Int) *Int { return MakeInt(e.dtype, e.value+other.value) }

// Sub returns e-other as a literal of e's dtype, wrapping around.
func (e *Int) Sub(other *Int) *Int { return MakeInt(e.dtype, e.value-other.value) }

// Mul returns e*other as a literal of e's dtype, wrapping around.
func (e *Int) Mul(other *Int) *Int { return MakeInt(e.dtype, e.value*other.value) }

// Div returns e/other (truncated) as a literal of e's dtype. It panics if other is zero.
func (e *Int) Div(other *Int) *Int {
	if other.value == 0 {
		exceptions.Panicf("expr: integer division by zero (%s / %s)", e, other)
	}
	return MakeInt(e.dtype, e.value/other.value)
}

// Rem returns e%other (sign of e) as a literal of e's dtype. It panics if other is zero.
func (e *Int) Rem(other *Int) *Int {
	if other.value == 0 {
		exceptions.Panicf("expr: integer remainder by zero (%s %% %s)", e, other)
	}
	return MakeInt(e.dtype, e.value%other.value)
}

func (e *UInt) Add(other *UInt) *UInt { return MakeUInt(e.dtype, e.value+other.value) }
func (e *UInt) Sub(other *UInt) *UInt { return MakeUInt(e.dtype, e.value-other.value) }
func (e *UInt) Mul(other *UInt) *UInt { return MakeUInt(e.dtype, e.value*other.value) }

func (e *UInt) Div(other *UInt) *UInt {
	if other.value == 0 {
		exceptions.Panicf("expr: integer division by zero (%s / %s)", e, other)
	}
	return MakeUInt(e.dtype, e.value/other.value)
}

func (e *UInt) Rem(other *UInt) *UInt {
	if other.value == 0 {
		exceptions.Panicf("expr: integer remainder by zero (%s %% %s)", e, other)
	}
	return MakeUInt(e.dtype, e.value%other.value)
}

// IsLiteral returns whether e is a numeric literal (*Int, *UInt or *Float).
func IsLiteral(e Expr) bool {
	return e != nil && e.Kind().IsLiteral()
}

// IntValue returns the value of an integer literal (*Int or *UInt) as an int64.
// It returns false if e is not an integer literal.
func IntValue(e Expr) (int64, bool) {
	switch x := e.(type) {
	case *Int:
		return x.value, true
	case *UInt:
		return int64(x.value), true
	}
	return 0, false
}

// IsConst returns whether e is a numeric literal equal to value.
func IsConst(e Expr, value int64) bool {
	switch x := e.(type) {
	case *Int:
		return x.value == value
	case *UInt:
		return value >= 0 && x.value == uint64(value)
	case *Float:
		return x.value == float64(value)
	}
	return false
}

// literalAsFloat returns the value of a numeric literal as float64.
func literalAsFloat(e Expr) float64 {
	switch x := e.(type) {
	case *Int:
		return float64(x.value)
	case *UInt:
		return float64(x.value)
	case *Float:
		return x.value
	}
	exceptions.Panicf("expr: %s is not a numeric literal", e)
	return math.NaN()
}

// literalAsInt returns the value of an integer literal as int64. Unsigned values are reinterpreted.
func literalAsInt(e Expr) int64 {
	switch x := e.(type) {
	case *Int:
		return x.value
	case *UInt:
		return int64(x.value)
	case *Float:
		return int64(x.value)
	}
	exceptions.Panicf("expr: %s is not a numeric literal", e)
	return 0
}

// makeIntLiteral builds a literal of dtype from the result of an integer operation.
func makeIntLiteral(dtype dtypes.DType, value int64) Expr {
	if dtype.IsUnsigned() {
		return MakeUInt(dtype, uint64(value))
	}
	return MakeInt(dtype, value)
}

// convertLiteral converts a numeric literal to dtype, with the wraparound and rounding of the target.
func convertLiteral(e Expr, dtype dtypes.DType) Expr {
	switch {
	case dtype.IsFloat():
		return MakeFloat(dtype, literalAsFloat(e))
	case dtype == dtypes.Bool:
		return MakeBool(literalAsFloat(e) != 0)
	case dtype.IsInt():
		return makeIntLiteral(dtype, literalAsInt(e))
	}
	return nil
}
