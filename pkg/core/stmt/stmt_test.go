// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stmt

import (
	"testing"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	i0 := expr.MakeAxis("i0", "n")
	x := expr.MakeTypedVar("x", dtypes.Float32)
	loop := MakeFor(i0, MakeSeq(
		MakeLet(x, expr.MakeLoad(dtypes.Float32, "%1", i0.Var)),
		MakeStore("%2", i0.Var, expr.MakeMul(x, 2.0)),
	))
	assert.Equal(t, "for i0 in 0..n {\n"+
		"    let x = %1[i0];\n"+
		"    %2[i0] = (x * 2.0);\n"+
		"}", loop.String())

	stepped := MakeFor(expr.MakeIterVar("j", 1, "m", 2), MakeNone())
	assert.Equal(t, "for j in 1..m step 2 {\n}", stepped.String())

	acc, idx := expr.MakeTypedVar("acc", dtypes.Float32), expr.MakeVar("idx")
	onlyThen := MakeIf(expr.MakeGt(x, acc), MakeSeq(MakeAssign(acc, x), MakeAssign(idx, "r")), nil)
	assert.Equal(t, "if (x > acc) {\n"+
		"    acc = x;\n"+
		"    idx = r;\n"+
		"}", onlyThen.String())

	withElse := MakeIf("c", MakeInplaceAdd(x, 1), MakeInplaceMul(x, 2))
	assert.Equal(t, "if (c) {\n"+
		"    x += 1;\n"+
		"} else {\n"+
		"    x *= 2;\n"+
		"}", withElse.String())

	scoped := &LetStmt{Var: x, Value: expr.MakeFloat(dtypes.Float32, 1.5), Body: MakeStore("%2", 0, x)}
	assert.Equal(t, "let x = 1.5 in {\n    %2[0] = x;\n}", scoped.String())

	// Nested loops indent by 4 spaces per level.
	nested := MakeFor(i0, MakeFor(expr.MakeAxis("i1", "m"), MakeInplaceAdd(expr.MakeLoad(dtypes.Float32, "%3", i0.Var), x)))
	assert.Equal(t, "for i0 in 0..n {\n"+
		"    for i1 in 0..m {\n"+
		"        %3[i0] += x;\n"+
		"    }\n"+
		"}", nested.String())

	assert.Equal(t, "", MakeNone().String())
}

func TestMakeSeq(t *testing.T) {
	x := expr.MakeVar("x")
	a, b, c := MakeAssign(x, 1), MakeAssign(x, 2), MakeAssign(x, 3)

	require.True(t, IsNone(MakeSeq()))
	require.True(t, IsNone(MakeSeq(MakeNone(), nil)))
	require.Same(t, a, MakeSeq(MakeNone(), a))

	seq, ok := MakeSeq(MakeNone(), MakeSeq(a, b), nil, &Seq{Stmts: []Stmt{&Seq{Stmts: []Stmt{c}}}}).(*Seq)
	require.True(t, ok)
	require.Len(t, seq.Stmts, 3)
	assert.Same(t, a, seq.Stmts[0])
	assert.Same(t, b, seq.Stmts[1])
	assert.Same(t, c, seq.Stmts[2])
	assert.Equal(t, "x = 1;\nx = 2;\nx = 3;", seq.String())
}

func TestWalkAndMutate(t *testing.T) {
	i0, i1 := expr.MakeAxis("p0", "n"), expr.MakeAxis("p1", "m")
	acc := expr.MakeVar("acc")
	tree := MakeSeq(
		MakeLet(acc, expr.MakeInt(dtypes.Int64, 0)),
		MakeFor(i0, MakeFor(i1, MakeInplaceAdd(acc, expr.MakeAdd(i0.Var, i1.Var)))),
		MakeFor(i1, MakeStore("%1", i1.Var, acc)),
	)

	var visited int
	Walk(tree, func(Stmt) bool {
		visited++
		return true
	})
	assert.Equal(t, 7, visited) // Seq, Let, For, For, InplaceAdd, For, Store.

	count, depth := CountLoops(tree)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, depth)

	// Skipping children.
	visited = 0
	Walk(tree, func(s Stmt) bool {
		visited++
		_, isFor := s.(*For)
		return !isFor
	})
	assert.Equal(t, 4, visited) // Seq, Let, For, For.

	renamed := Substitute(tree, map[string]expr.Expr{"p0": expr.MakeVar("i0"), "p1": expr.MakeVar("i1")})
	assert.Equal(t, "let acc = 0;\n"+
		"for p0 in 0..n {\n"+
		"    for p1 in 0..m {\n"+
		"        acc += (i0 + i1);\n"+
		"    }\n"+
		"}\n"+
		"for p1 in 0..m {\n"+
		"    %1[i1] = acc;\n"+
		"}", renamed.String(), "binders are not renamed")

	// Nothing to change: the same tree is returned.
	assert.Same(t, tree, Substitute(tree, map[string]expr.Expr{"unused": expr.MakeVar("x")}))
	assert.Same(t, tree, ExprMutate(tree, expr.MutatorFunc(func(e expr.Expr) expr.Expr { return e })))

	doubled := ExprMutate(tree, expr.MutatorFunc(func(e expr.Expr) expr.Expr {
		if v, ok := e.(*expr.Variable); ok && v.Name() == "n" {
			return expr.MakeMul(v, 2)
		}
		return e
	}))
	assert.Contains(t, doubled.String(), "for p0 in 0..(n * 2) {")
}
