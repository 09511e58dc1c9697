// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"testing"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindCounter map[Kind]int

func (c kindCounter) Visit(e Expr) Visitor {
	c[e.Kind()]++
	return c
}

type depthTracker struct {
	depth, maxDepth int
}

func (d *depthTracker) Enter(Expr) bool {
	d.depth++
	d.maxDepth = max(d.maxDepth, d.depth)
	return true
}

func (d *depthTracker) Leave(Expr) { d.depth-- }

func TestVisitors(t *testing.T) {
	e := MakeAdd(MakeMul("a", 2), "b")

	var count int
	Inspect(e, func(Expr) bool { count++; return true })
	assert.Equal(t, 5, count)

	count = 0
	Inspect(e, func(node Expr) bool { count++; return node.Kind() != KindMul })
	assert.Equal(t, 3, count)

	counter := kindCounter{}
	MakeSelect(MakeLt("i", 3), MakeLoad(dtypes.Float32, "x", "i"), 0.0).Accept(counter)
	assert.Equal(t, 1, counter[KindSelect])
	assert.Equal(t, 1, counter[KindLoad])
	assert.Equal(t, 3, counter[KindVariable]) // i, x (buffer) and i.

	d := &depthTracker{}
	e.AcceptMut(d)
	assert.Equal(t, 3, d.maxDepth)
	assert.Equal(t, 0, d.depth)
}

func TestAcceptMutateCopyOnWrite(t *testing.T) {
	e := MakeAdd(MakeMul("a", 2), "b")
	same := e.AcceptMutate(MutatorFunc(func(node Expr) Expr { return node }))
	assert.Same(t, e, same)

	replaced := Substitute(e, map[string]Expr{"b": MakeInt(dtypes.Int64, 3)})
	require.Equal(t, "((a * 2) + 3)", replaced.String())
	assert.Same(t, e.Lhs(), replaced.(*Binary).Lhs(), "unchanged sub-trees must be shared")
	assert.Equal(t, "((a * 2) + b)", e.String(), "original must not change")

	call := MakeCall("pow", dtypes.Float32, "x", "y")
	replaced = Substitute(call, map[string]Expr{"y": MakeFloat(dtypes.Float32, 2)})
	assert.Equal(t, "pow(x, 2.0)", replaced.String())
	assert.Equal(t, "pow(x, y)", call.String())

	reduce := MakeReduce("sum", []Expr{MakeInt(dtypes.Int64, 0)}, []*IterVar{MakeAxis("r", "m")},
		[]Expr{MakeLoad(dtypes.Float32, "a", MakeAdd(MakeMul("i", "m"), "r"))})
	replaced = Substitute(reduce, map[string]Expr{"m": MakeInt(dtypes.Int64, 4)})
	assert.Equal(t, "reduce_sum(a[((i * 4) + r)]; r in 0..4; init=0)", replaced.String())
	assert.Equal(t, "m", reduce.Iters()[0].End.String())
}

func TestSimplify(t *testing.T) {
	assert.True(t, Equal(MakeVar("i"), Simplify(MakeAdd(MakeMul("i", 1), 0))))
	assert.True(t, Equal(MakeVar("i"), Simplify(MakeSub(MakeDiv("i", 1), 0))))
	assert.True(t, Equal(MakeVar("i"), Simplify(MakeMul(1, MakeAdd(0, "i")))))
	assert.True(t, Equal(MakeInt(dtypes.Int64, 0), Simplify(MakeMul("i", 0))))
	assert.True(t, Equal(MakeInt(dtypes.Int64, 14), Simplify(MakeAdd(2, MakeMul(3, 4)))))
	assert.True(t, Equal(MakeVar("a"), Simplify(MakeSelect(true, "a", "b"))))
	assert.True(t, Equal(MakeVar("b"), Simplify(MakeSelect(MakeGt(1, 2), "a", "b"))))
	assert.True(t, Equal(MakeInt(dtypes.Int8, 44), Simplify(MakeCast(300, dtypes.Int8))))
	assert.True(t, Equal(MakeBool(false), Simplify(MakeNot(MakeLe(1, 2)))))

	x := MakeTypedVar("x", dtypes.Float32)
	assert.Same(t, x, Simplify(MakeAdd(x, float32(0))))
	// Float multiplication by zero is kept (NaN and Inf semantics).
	assert.Equal(t, KindMul, Simplify(MakeMul(x, float32(0))).Kind())
	// Identities that would change the dtype are not applied.
	k := MakeTypedVar("k", dtypes.Int32)
	assert.Equal(t, KindAdd, Simplify(MakeAdd(k, 0)).Kind())
}

func TestFreeVars(t *testing.T) {
	names := func(vars []*Variable) []string {
		out := make([]string, len(vars))
		for ii, v := range vars {
			out[ii] = v.Name()
		}
		return out
	}
	assert.Equal(t, []string{"n", "m"}, names(FreeVars(MakeLet("x", "n", MakeAdd("x", "m")))))
	assert.Equal(t, []string{"i", "j"}, names(FreeVars(MakeAdd(MakeMul("i", "j"), "i"))))

	reduce := MakeReduce("sum", []Expr{MakeInt(dtypes.Int64, 0)}, []*IterVar{MakeAxis("r0", "m")},
		[]Expr{MakeLoad(dtypes.Float32, "a", MakeAdd(MakeMul("i", "m"), "r0"))})
	assert.Equal(t, []string{"m", "i"}, names(FreeVars(reduce)))
	assert.Empty(t, FreeVars(MakeInt(dtypes.Int64, 3)))
}

func TestEvalInt(t *testing.T) {
	v, err := EvalInt(MakeAdd(MakeMul("i", "s"), 3), Env{"i": 2, "s": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(13), v)

	v, err = EvalInt(MakeLet("x", 4, MakeMul("x", "x")), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(16), v)

	v, err = EvalInt(MakeSelect(MakeLt("i", 3), 10, 20), Env{"i": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	v, err = EvalInt(MakeCast(300, dtypes.Int8), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(44), v)

	v, err = EvalInt(MakeAdd(MakeMin("a", "b"), MakeMax(MakeMod("a", 3), MakeShl(1, 2))), Env{"a": 7, "b": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(7+4), v)

	v, err = EvalInt(MakeNot(MakeEq("a", 1)), Env{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, err = EvalInt(MakeAdd("i", 1), Env{})
	require.ErrorContains(t, err, `"i" not defined`)

	_, err = EvalInt(MakeDiv("i", "z"), Env{"i": 1, "z": 0})
	require.ErrorContains(t, err, "division by zero")

	_, err = EvalInt(MakeLoad(dtypes.Float32, "x", 0), nil)
	require.Error(t, err)

	_, err = EvalInt(MakeFloat(dtypes.Float64, 1.5), nil)
	require.Error(t, err)

	// Evaluators can be reused.
	ev := NewIdxEvaluator(Env{"n": 3})
	for want := int64(3); want < 6; want++ {
		v, err = ev.Eval(MakeAdd("n", want-3))
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestIterVar(t *testing.T) {
	iv := MakeAxis("i", "n")
	assert.Equal(t, "i in 0..n", iv.String())
	assert.True(t, Equal(MakeVar("n"), iv.Extent()))

	iv = MakeIterVar("j", 1, 10, 3)
	assert.Equal(t, "j in 1..10 step 3", iv.String())
	assert.True(t, IsConst(iv.Extent(), 3))

	renamed := iv.WithName("i0")
	assert.Equal(t, "i0 in 1..10 step 3", renamed.String())
	assert.False(t, renamed.Equal(iv))
	assert.True(t, iv.Equal(MakeIterVar("j", 1, 10, 3)))

	extent, err := EvalInt(MakeIterVar("k", 2, "n", 2).Extent(), Env{"n": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(4), extent)
}
