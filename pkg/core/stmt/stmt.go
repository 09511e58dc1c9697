// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stmt defines the statement tree produced by lowering: nested loops, value bindings,
// stores and in-place updates, ready for a code generator or an interpreter.
//
// Statements are immutable once built, like expressions. The String method renders a canonical,
// human-readable form, one statement per line and nested bodies indented by 4 spaces.
package stmt

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/expr"
)

// Stmt is a node of the statement tree. The set of statements is closed.
type Stmt interface {
	// String renders the statement, without a trailing new line.
	String() string

	// write appends the statement to the printer, at its current indentation.
	write(p *printer)

	isStmt()
}

type (
	// For loops Var from Start (inclusive) to End (exclusive) with the given Step, running Body
	// once per value.
	For struct {
		Var              *expr.Variable
		Start, End, Step expr.Expr
		Body             Stmt
	}

	// LetStmt binds Var to Value.
	//
	// If Body is None, the binding is visible to the following statements of the enclosing
	// block. Otherwise, it is only visible within Body.
	LetStmt struct {
		Var   *expr.Variable
		Value expr.Expr
		Body  Stmt
	}

	// Store writes Value to Buffer[Index].
	Store struct {
		Buffer *expr.Variable
		Index  expr.Expr
		Value  expr.Expr
	}

	// IfThenElse runs Then if Cond is true, Else otherwise. Else can be None.
	IfThenElse struct {
		Cond       expr.Expr
		Then, Else Stmt
	}

	// Seq runs statements in order.
	Seq struct {
		Stmts []Stmt
	}

	// InplaceAdd does Target += Delta. Target is a *expr.Variable or a *expr.Load.
	InplaceAdd struct {
		Target, Delta expr.Expr
	}

	// InplaceMul does Target *= Factor. Target is a *expr.Variable or a *expr.Load.
	InplaceMul struct {
		Target, Factor expr.Expr
	}

	// Assign does Target = Value, for a Target previously bound with LetStmt.
	Assign struct {
		Target *expr.Variable
		Value  expr.Expr
	}

	// None is the empty statement.
	None struct{}
)

var (
	_ Stmt = (*For)(nil)
	_ Stmt = (*LetStmt)(nil)
	_ Stmt = (*Store)(nil)
	_ Stmt = (*IfThenElse)(nil)
	_ Stmt = (*Seq)(nil)
	_ Stmt = (*InplaceAdd)(nil)
	_ Stmt = (*InplaceMul)(nil)
	_ Stmt = (*Assign)(nil)
	_ Stmt = (*None)(nil)
)

func (*For) isStmt()        {}
func (*LetStmt) isStmt()    {}
func (*Store) isStmt()      {}
func (*IfThenElse) isStmt() {}
func (*Seq) isStmt()        {}
func (*InplaceAdd) isStmt() {}
func (*InplaceMul) isStmt() {}
func (*Assign) isStmt()     {}
func (*None) isStmt()       {}

var noneStmt = &None{}

// MakeNone returns the empty statement.
func MakeNone() Stmt {
	return noneStmt
}

// IsNone returns whether s is nil or the empty statement.
func IsNone(s Stmt) bool {
	if s == nil {
		return true
	}
	_, ok := s.(*None)
	return ok
}

// MakeFor returns a loop over iv, running body.
func MakeFor(iv *expr.IterVar, body Stmt) *For {
	return &For{Var: iv.Var, Start: iv.Start, End: iv.End, Step: iv.Step, Body: orNone(body)}
}

// MakeLet returns a LetStmt visible to the statements that follow it in the enclosing block.
// A variable given by name takes the dtype of the value.
func MakeLet(variable any, value expr.Expr) *LetStmt {
	return &LetStmt{Var: asVariable(variable, value), Value: value, Body: noneStmt}
}

// MakeStore returns a store of value into buffer[index].
func MakeStore(buffer any, index, value any) *Store {
	return &Store{Buffer: asVariable(buffer, nil), Index: expr.AsExpr(index), Value: expr.AsExpr(value)}
}

// MakeIf returns a conditional statement. onFalse may be nil.
func MakeIf(cond any, onTrue, onFalse Stmt) *IfThenElse {
	return &IfThenElse{Cond: expr.AsExpr(cond), Then: orNone(onTrue), Else: orNone(onFalse)}
}

// MakeInplaceAdd returns target += delta.
func MakeInplaceAdd(target expr.Expr, delta any) *InplaceAdd {
	return &InplaceAdd{Target: target, Delta: expr.AsExpr(delta)}
}

// MakeInplaceMul returns target *= factor.
func MakeInplaceMul(target expr.Expr, factor any) *InplaceMul {
	return &InplaceMul{Target: target, Factor: expr.AsExpr(factor)}
}

// MakeAssign returns target = value.
func MakeAssign(target *expr.Variable, value any) *Assign {
	return &Assign{Target: target, Value: expr.AsExpr(value)}
}

// MakeSeq returns the sequence of the given statements: nested sequences are flattened and
// empty statements dropped. A single statement is returned as is, and no statements returns None.
func MakeSeq(stmts ...Stmt) Stmt {
	flat := flatten(make([]Stmt, 0, len(stmts)), stmts)
	switch len(flat) {
	case 0:
		return noneStmt
	case 1:
		return flat[0]
	}
	return &Seq{Stmts: flat}
}

func flatten(flat, stmts []Stmt) []Stmt {
	for _, s := range stmts {
		if seq, ok := s.(*Seq); ok {
			flat = flatten(flat, seq.Stmts)
		} else if !IsNone(s) {
			flat = append(flat, s)
		}
	}
	return flat
}

func orNone(s Stmt) Stmt {
	if s == nil {
		return noneStmt
	}
	return s
}

// asVariable converts a name or a variable. Names of variables holding values take the dtype of
// the value.
func asVariable(v any, value expr.Expr) *expr.Variable {
	switch v := v.(type) {
	case *expr.Variable:
		return v
	case string:
		if value != nil {
			return expr.MakeTypedVar(v, value.DType())
		}
		return expr.MakeVar(v)
	}
	if variable, ok := expr.AsExpr(v).(*expr.Variable); ok {
		return variable
	}
	exceptions.Panicf("stmt: %v (%T) can't be used as a variable", v, v)
	panic(nil) // Quiet linter.
}
