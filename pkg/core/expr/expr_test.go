// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"testing"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntWraparound(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Int8, dtypes.Int16, dtypes.Int32} {
		period := int64(1) << dtype.Bits()
		for _, v := range []int64{-300, -1, 0, 1, 127, 128, 255, 1000, 1 << 40} {
			assert.Equal(t, MakeInt(dtype, v).Value(), MakeInt(dtype, v+period).Value(),
				"dtype=%s, v=%d", dtype, v)
		}
	}
	assert.Equal(t, int64(-56), MakeInt(dtypes.Int8, 200).Value())
	assert.Equal(t, int64(-1), MakeInt(dtypes.Int16, 0xFFFF).Value())
	assert.Equal(t, int64(-1<<31), MakeInt(dtypes.Int32, 1<<31).Value())
	assert.Equal(t, int64(1<<40), MakeInt(dtypes.Int64, 1<<40).Value())
	assert.Equal(t, int64(1), MakeInt(dtypes.Bool, 7).Value())
	assert.Equal(t, int64(0), MakeBool(false).Value())

	for _, dtype := range []dtypes.DType{dtypes.Uint8, dtypes.Uint16, dtypes.Uint32} {
		period := uint64(1) << dtype.Bits()
		for _, v := range []uint64{0, 1, 255, 256, 70000, 1 << 40} {
			assert.Equal(t, MakeUInt(dtype, v).Value(), MakeUInt(dtype, v+period).Value(),
				"dtype=%s, v=%d", dtype, v)
		}
	}
	assert.Equal(t, uint64(44), MakeUInt(dtypes.Uint8, 300).Value())

	require.Panics(t, func() { MakeInt(dtypes.Uint8, 1) })
	require.Panics(t, func() { MakeUInt(dtypes.Int32, 1) })
	require.Panics(t, func() { MakeFloat(dtypes.Int32, 1) })
}

func TestLiteralArithmetic(t *testing.T) {
	a, b := MakeInt(dtypes.Int8, 100), MakeInt(dtypes.Int8, 100)
	assert.Equal(t, int64(-56), a.Add(b).Value())
	assert.Equal(t, int64(0), a.Sub(b).Value())
	assert.Equal(t, int64(16), a.Mul(b).Value()) // 10000 mod 256
	assert.Equal(t, int64(1), a.Div(b).Value())
	assert.Equal(t, int64(-1), MakeInt(dtypes.Int32, -7).Rem(MakeInt(dtypes.Int32, 2)).Value())
	require.Panics(t, func() { a.Div(MakeInt(dtypes.Int8, 0)) })

	u := MakeUInt(dtypes.Uint8, 250)
	assert.Equal(t, uint64(4), u.Add(MakeUInt(dtypes.Uint8, 10)).Value())
	assert.Equal(t, uint64(246), MakeUInt(dtypes.Uint8, 0).Sub(MakeUInt(dtypes.Uint8, 10)).Value())
	require.Panics(t, func() { u.Rem(MakeUInt(dtypes.Uint8, 0)) })
}

func TestFolding(t *testing.T) {
	five := Plus(MakeInt(dtypes.Int64, 2), MakeInt(dtypes.Int64, 3))
	assert.True(t, Equal(MakeInt(dtypes.Int64, 5), five), "got %s", five)

	mixed := Plus(MakeInt(dtypes.Int64, 2), MakeFloat(dtypes.Float64, 1.5))
	assert.True(t, Equal(MakeFloat(dtypes.Float64, 3.5), mixed), "got %s", mixed)

	assert.True(t, Equal(MakeInt(dtypes.Int64, 3), Quo(7, 2)))
	assert.True(t, Equal(MakeInt(dtypes.Int64, -1), Rem(-7, 2)))
	assert.True(t, Equal(MakeFloat(dtypes.Float64, 2.5), MinOf(3, 2.5)))
	assert.True(t, Equal(MakeUInt(dtypes.Uint8, 250), MaxOf(uint8(3), uint8(250))))
	assert.True(t, Equal(MakeUInt(dtypes.Uint8, 4), Plus(uint8(250), uint8(10))))
	assert.True(t, Equal(MakeInt(dtypes.Int8, -56), Plus(int8(100), int8(100))))
	assert.True(t, Equal(MakeInt(dtypes.Int64, 6), Times(2, 3)))
	assert.True(t, Equal(MakeFloat(dtypes.Float32, 0.5), Minus(float32(1), float32(0.5))))

	// Non-literal operands build the node.
	sum := Plus("a", 1)
	require.Equal(t, KindAdd, sum.Kind())
	assert.Equal(t, "(a + 1)", sum.String())
	assert.Equal(t, dtypes.Int64, sum.DType())
	assert.Equal(t, "(sin(x) * y)", Times(MakeCall("sin", dtypes.Float32, "x"), "y").String())

	// Invalid combinations are contract violations.
	require.PanicsWithError(t, "cannot add these expr kinds: Str and Int", func() { Plus(MakeStr("x"), 1) })
	require.Panics(t, func() { Minus(MakeNone(), 1) })
	require.Panics(t, func() {
		Times(MakeReduce("sum", nil, nil, []Expr{MakeVar("x")}), 2)
	})
	require.Panics(t, func() { Quo(1, 0) })
	require.Panics(t, func() { Plus(struct{}{}, 1) })
}

func TestEqual(t *testing.T) {
	a, b := MakeVar("a"), MakeMul("b", 2)
	assert.True(t, Equal(MakeAdd(a, b), MakeAdd(b, a)))
	assert.True(t, Equal(MakeMul(a, b), MakeMul(b, a)))
	assert.False(t, Equal(MakeSub(a, b), MakeSub(b, a)))
	assert.False(t, Equal(MakeDiv(a, b), MakeDiv(b, a)))
	assert.False(t, Equal(MakeMin(a, b), MakeMin(b, a)))
	assert.False(t, Equal(MakeLt(a, b), MakeLt(b, a)))
	assert.True(t, Equal(MakeSub(a, b), MakeSub("a", MakeMul("b", 2))))

	assert.False(t, Equal(MakeInt(dtypes.Int32, 1), MakeInt(dtypes.Int64, 1)))
	assert.False(t, Equal(MakeVar("a"), MakeTypedVar("a", dtypes.Float32)))
	assert.False(t, Equal(MakeAdd(a, b), MakeMul(a, b)))
	assert.True(t, Equal(MakeNone(), MakeNone()))
	assert.True(t, Equal(MakeLoad(dtypes.Float32, "x", "i"), MakeLoad(dtypes.Float32, "x", "i")))
	assert.False(t, Equal(MakeLoad(dtypes.Float32, "x", "i"), MakeLoad(dtypes.Float32, "y", "i")))
	assert.True(t, Equal(MakeCall("exp", dtypes.Float32, a), MakeCall("exp", dtypes.Float32, "a")))
	assert.False(t, Equal(MakeCall("exp", dtypes.Float32, a), MakeCall("log", dtypes.Float32, a)))
}

func TestString(t *testing.T) {
	testCases := []struct {
		e    Expr
		want string
	}{
		{MakeAdd("a", "b"), "(a + b)"},
		{MakeMin("a", 1), "min(a, 1)"},
		{MakeMax("a", MakeMod("b", 3)), "max(a, (b % 3))"},
		{MakeLoad(dtypes.Float32, "x", "i"), "x[i]"},
		{MakeSelect(MakeLt("i", 3), 1.5, 2.0), "((i < 3) ? 1.5 : 2.0)"},
		{MakeCast("i", dtypes.Float32), "float32(i)"},
		{MakeLet("x", 3, MakeMul("x", 2)), "(let x = 3 in (x * 2))"},
		{MakeNot(MakeEq("a", "b")), "!(a == b)"},
		{MakeCall("sin", dtypes.Float32, "x"), "sin(x)"},
		{MakeCall("pow", dtypes.Float32, "x", 2.0), "pow(x, 2.0)"},
		{MakeStr("hi"), `"hi"`},
		{MakeBool(true), "true"},
		{MakeXor(MakeShl("a", 1), MakeShr("b", uint8(2))), "((a << 1) ^ (b >> 2))"},
		{MakeReduce("sum", []Expr{MakeInt(dtypes.Int64, 0)}, []*IterVar{MakeAxis("r0", "m")},
			[]Expr{MakeLoad(dtypes.Float32, "a", "r0")}), "reduce_sum(a[r0]; r0 in 0..m; init=0)"},
		{MakeNone(), "none"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, tc.e.String())
	}
}

func TestDTypes(t *testing.T) {
	assert.Equal(t, dtypes.Bool, MakeLt("a", "b").DType())
	assert.Equal(t, dtypes.Float32, MakeAdd(MakeTypedVar("x", dtypes.Float32), float32(1)).DType())
	assert.Equal(t, dtypes.Float64, MakeAdd(MakeTypedVar("x", dtypes.Float32), 1.0).DType())
	assert.Equal(t, dtypes.Int8, MakeShl(int8(1), 3).DType())
	assert.Equal(t, dtypes.Float32, MakeCall("sin", dtypes.Float32, "x").DType())
	assert.Equal(t, dtypes.Float32, MakeLoad(dtypes.Float32, "x", "i").DType())
	assert.Equal(t, dtypes.Int64, MakeLet("x", 3, "x").DType())
	assert.Equal(t, dtypes.InvalidDType, MakeStr("x").DType())
	assert.Equal(t, dtypes.Float16, MakeCast("i", dtypes.Float16).DType())
}

func TestAsExpr(t *testing.T) {
	assert.Equal(t, dtypes.Int64, AsExpr(3).DType())
	assert.Equal(t, dtypes.Int16, AsExpr(int16(3)).DType())
	assert.Equal(t, dtypes.Uint64, AsExpr(uint(3)).DType())
	assert.Equal(t, dtypes.Float32, AsExpr(float32(3)).DType())
	assert.Equal(t, KindVariable, AsExpr("n").Kind())
	iv := MakeAxis("i", 10)
	assert.Same(t, iv.Var, AsExpr(iv))
	x := MakeVar("x")
	assert.Same(t, x, AsExpr(x))
	require.Panics(t, func() { AsExpr(nil) })
	require.Panics(t, func() { AsExpr([]int{1}) })
	assert.Len(t, AsExprs(1, 2, 3), 3)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "Add", KindAdd.String())
	assert.Equal(t, "Reduce", KindReduce.String())
	assert.True(t, KindShr.IsBinary())
	assert.False(t, KindNot.IsBinary())
	assert.True(t, KindGe.IsComparison())
	assert.False(t, KindAdd.IsComparison())
	assert.True(t, KindMul.IsCommutative())
	assert.False(t, KindMax.IsCommutative())
	assert.Equal(t, KindSub, MakeSub("a", "b").Op())
}
