// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package expr defines the scalar expression algebra of tensorir: typed literals, variables,
// arithmetic, comparisons, bitwise operations, casts, calls to math primitives, selects,
// let-bindings, buffer loads and reductions.
//
// Expressions are immutable trees. Children are shared by pointer, so "cloning" an expression is
// free, and rewrites (see AcceptMutate) only rebuild the path from a changed node to the root.
// Since a node can only be built from already existing nodes, expressions are never cyclic.
//
// There are three ways of building expressions:
//
//   - The Make* constructors build exactly the requested node, converting Go values with AsExpr.
//   - The folding functions Plus, Minus, Times, Quo, Rem, MinOf and MaxOf compute the result directly
//     when both operands are literals (with dtype promotion), and build the node otherwise.
//   - Simplify rewrites a whole tree, folding constants and removing trivial identities.
//
// Contract violations, like folding a string literal, panic with exceptions.Panicf: they indicate
// a bug in the caller, not bad user data.
package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/core/dtypes"
)

// Kind enumerates the variants of Expr.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindUInt
	KindFloat
	KindStr
	KindVariable

	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMod
	KindMin
	KindMax

	KindEq
	KindNe
	KindLt
	KindLe
	KindGt
	KindGe

	KindAnd
	KindOr
	KindXor
	KindShl
	KindShr

	KindNot
	KindCast
	KindCall
	KindSelect
	KindLet
	KindLoad
	KindReduce

	numKinds
)

var kindNames = [numKinds]string{
	KindNone:     "None",
	KindInt:      "Int",
	KindUInt:     "UInt",
	KindFloat:    "Float",
	KindStr:      "Str",
	KindVariable: "Variable",
	KindAdd:      "Add",
	KindSub:      "Sub",
	KindMul:      "Mul",
	KindDiv:      "Div",
	KindMod:      "Mod",
	KindMin:      "Min",
	KindMax:      "Max",
	KindEq:       "Eq",
	KindNe:       "Ne",
	KindLt:       "Lt",
	KindLe:       "Le",
	KindGt:       "Gt",
	KindGe:       "Ge",
	KindAnd:      "And",
	KindOr:       "Or",
	KindXor:      "Xor",
	KindShl:      "Shl",
	KindShr:      "Shr",
	KindNot:      "Not",
	KindCast:     "Cast",
	KindCall:     "Call",
	KindSelect:   "Select",
	KindLet:      "Let",
	KindLoad:     "Load",
	KindReduce:   "Reduce",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Kind(?)"
	}
	return kindNames[k]
}

// IsBinary returns whether the kind is one of the two-operand nodes represented by *Binary.
func (k Kind) IsBinary() bool {
	return k >= KindAdd && k <= KindShr
}

// IsComparison returns whether the kind is a comparison, whose result is always a Bool.
func (k Kind) IsComparison() bool {
	return k >= KindEq && k <= KindGe
}

// IsLiteral returns whether the kind is a numeric literal (Int, UInt or Float).
func (k Kind) IsLiteral() bool {
	return k == KindInt || k == KindUInt || k == KindFloat
}

// IsCommutative returns whether the structural equality of the binary kind ignores the order of
// its operands. Only Add and Mul are.
func (k Kind) IsCommutative() bool {
	return k == KindAdd || k == KindMul
}

// Symbol returns the infix symbol of a binary kind, or its function name for min/max.
func (k Kind) Symbol() string {
	switch k {
	case KindAdd:
		return "+"
	case KindSub:
		return "-"
	case KindMul:
		return "*"
	case KindDiv:
		return "/"
	case KindMod:
		return "%"
	case KindMin:
		return "min"
	case KindMax:
		return "max"
	case KindEq:
		return "=="
	case KindNe:
		return "!="
	case KindLt:
		return "<"
	case KindLe:
		return "<="
	case KindGt:
		return ">"
	case KindGe:
		return ">="
	case KindAnd:
		return "&"
	case KindOr:
		return "|"
	case KindXor:
		return "^"
	case KindShl:
		return "<<"
	case KindShr:
		return ">>"
	}
	return k.String()
}

// Expr is a node of the scalar expression tree.
//
// The set of implementations is closed: *Int, *UInt, *Float, *Str, *Variable, *Binary, *Not,
// *Cast, *Call, *Select, *Let, *Load, *Reduce and *None.
type Expr interface {
	// Kind of the node.
	Kind() Kind

	// DType of the value the expression evaluates to. String literals and None have InvalidDType.
	DType() dtypes.DType

	// String renders the expression for debugging. It is not meant to be parsed back.
	String() string

	// Accept walks the expression in pre-order with a read-only Visitor.
	Accept(v Visitor)

	// AcceptMut walks the expression with a stateful MutVisitor, calling Enter before and Leave
	// after the children of each node.
	AcceptMut(v MutVisitor)

	// AcceptMutate rewrites the expression bottom-up: children are mutated first, the node is rebuilt
	// only if any of them changed, and finally m.Mutate is given the chance to replace it.
	AcceptMutate(m Mutator) Expr

	isExpr()
}

type (
	// Int is a signed integer (or Bool) literal. Its value is always normalized to the width of its dtype.
	Int struct {
		dtype dtypes.DType
		value int64
	}

	// UInt is an unsigned integer literal, masked to the width of its dtype.
	UInt struct {
		dtype dtypes.DType
		value uint64
	}

	// Float is a floating point literal, rounded to the precision of its dtype.
	Float struct {
		dtype dtypes.DType
		value float64
	}

	// Str is a string literal. Strings have no dtype and can't be used in arithmetic.
	Str struct {
		value string
	}

	// Variable is a named scalar: loop indices, symbolic dimensions, let-bound values, buffer names.
	Variable struct {
		name  string
		dtype dtypes.DType
	}

	// Binary is any of the two-operand nodes: arithmetic, comparison and bitwise.
	Binary struct {
		kind     Kind
		lhs, rhs Expr
		dtype    dtypes.DType
	}

	// Not is the logical (for Bool) or bitwise negation.
	Not struct {
		x Expr
	}

	// Cast converts x to dtype.
	Cast struct {
		x     Expr
		dtype dtypes.DType
	}

	// Call of a named primitive (e.g.: "sin", "exp") with the given arguments.
	Call struct {
		name  string
		args  []Expr
		dtype dtypes.DType
	}

	// Select evaluates to onTrue if cond is true, onFalse otherwise.
	Select struct {
		cond, onTrue, onFalse Expr
	}

	// Let binds variable to value within body.
	Let struct {
		variable    *Variable
		value, body Expr
	}

	// Load reads the element at index of the named buffer.
	Load struct {
		buffer *Variable
		index  Expr
		dtype  dtypes.DType
	}

	// Reduce is a symbolic reduction: it combines values over the whole space of iters, starting
	// from identity, with the named op ("sum", "prod", "max", ...).
	Reduce struct {
		op       string
		identity []Expr
		iters    []*IterVar
		values   []Expr
	}

	// None is the "no value" sentinel.
	None struct{}
)

var (
	_ Expr = (*Int)(nil)
	_ Expr = (*UInt)(nil)
	_ Expr = (*Float)(nil)
	_ Expr = (*Str)(nil)
	_ Expr = (*Variable)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Not)(nil)
	_ Expr = (*Cast)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Select)(nil)
	_ Expr = (*Let)(nil)
	_ Expr = (*Load)(nil)
	_ Expr = (*Reduce)(nil)
	_ Expr = (*None)(nil)
)

func (*Int) isExpr()      {}
func (*UInt) isExpr()     {}
func (*Float) isExpr()    {}
func (*Str) isExpr()      {}
func (*Variable) isExpr() {}
func (*Binary) isExpr()   {}
func (*Not) isExpr()      {}
func (*Cast) isExpr()     {}
func (*Call) isExpr()     {}
func (*Select) isExpr()   {}
func (*Let) isExpr()      {}
func (*Load) isExpr()     {}
func (*Reduce) isExpr()   {}
func (*None) isExpr()     {}

func (*Int) Kind() Kind      { return KindInt }
func (*UInt) Kind() Kind     { return KindUInt }
func (*Float) Kind() Kind    { return KindFloat }
func (*Str) Kind() Kind      { return KindStr }
func (*Variable) Kind() Kind { return KindVariable }
func (e *Binary) Kind() Kind { return e.kind }
func (*Not) Kind() Kind      { return KindNot }
func (*Cast) Kind() Kind     { return KindCast }
func (*Call) Kind() Kind     { return KindCall }
func (*Select) Kind() Kind   { return KindSelect }
func (*Let) Kind() Kind      { return KindLet }
func (*Load) Kind() Kind     { return KindLoad }
func (*Reduce) Kind() Kind   { return KindReduce }
func (*None) Kind() Kind     { return KindNone }

func (e *Int) DType() dtypes.DType      { return e.dtype }
func (e *UInt) DType() dtypes.DType     { return e.dtype }
func (e *Float) DType() dtypes.DType    { return e.dtype }
func (*Str) DType() dtypes.DType        { return dtypes.InvalidDType }
func (e *Variable) DType() dtypes.DType { return e.dtype }
func (e *Binary) DType() dtypes.DType   { return e.dtype }
func (e *Not) DType() dtypes.DType      { return e.x.DType() }
func (e *Cast) DType() dtypes.DType     { return e.dtype }
func (e *Call) DType() dtypes.DType     { return e.dtype }
func (e *Select) DType() dtypes.DType   { return promoteOrEither(e.onTrue.DType(), e.onFalse.DType()) }
func (e *Let) DType() dtypes.DType      { return e.body.DType() }
func (e *Load) DType() dtypes.DType     { return e.dtype }
func (*None) DType() dtypes.DType       { return dtypes.InvalidDType }

func (e *Reduce) DType() dtypes.DType {
	if len(e.values) == 0 {
		return dtypes.InvalidDType
	}
	return e.values[0].DType()
}

// promoteOrEither promotes a and b, but if one of them is invalid (e.g. a None) it returns the other.
func promoteOrEither(a, b dtypes.DType) dtypes.DType {
	if a == dtypes.InvalidDType {
		return b
	}
	if b == dtypes.InvalidDType {
		return a
	}
	return dtypes.Promote(a, b)
}

// Accessors.

// Value of the literal, sign-extended from its dtype width.
func (e *Int) Value() int64 { return e.value }

// Value of the literal, masked to its dtype width.
func (e *UInt) Value() uint64 { return e.value }

// Value of the literal, rounded to its dtype precision.
func (e *Float) Value() float64 { return e.value }

// Value of the string literal.
func (e *Str) Value() string { return e.value }

// Name of the variable.
func (e *Variable) Name() string { return e.name }

// Op returns the kind of binary operation, same as Kind.
func (e *Binary) Op() Kind { return e.kind }

// Lhs is the left-hand side operand.
func (e *Binary) Lhs() Expr { return e.lhs }

// Rhs is the right-hand side operand.
func (e *Binary) Rhs() Expr { return e.rhs }

// X is the negated operand.
func (e *Not) X() Expr { return e.x }

// X is the converted operand.
func (e *Cast) X() Expr { return e.x }

// Name of the called primitive.
func (e *Call) Name() string { return e.name }

// Args returns the arguments of the call. The returned slice must not be modified.
func (e *Call) Args() []Expr { return e.args }

func (e *Select) Cond() Expr    { return e.cond }
func (e *Select) OnTrue() Expr  { return e.onTrue }
func (e *Select) OnFalse() Expr { return e.onFalse }

func (e *Let) Var() *Variable { return e.variable }
func (e *Let) Value() Expr    { return e.value }
func (e *Let) Body() Expr     { return e.body }

func (e *Load) Buffer() *Variable { return e.buffer }
func (e *Load) Index() Expr       { return e.index }

// Op is the name of the reduction: "sum", "prod", "max", "min", "argmax" or "argmin".
func (e *Reduce) Op() string { return e.op }

// Identity returns the initial values of the accumulators. The returned slice must not be modified.
func (e *Reduce) Identity() []Expr { return e.identity }

// Iters returns the reduction axes. The returned slice must not be modified.
func (e *Reduce) Iters() []*IterVar { return e.iters }

// Values returns the reduced expressions. The returned slice must not be modified.
func (e *Reduce) Values() []Expr { return e.values }

// Constructors.

// MakeVar returns an Int64 variable: the type used for loop indices and dimension sizes.
func MakeVar(name string) *Variable {
	return MakeTypedVar(name, dtypes.Int64)
}

// MakeTypedVar returns a variable of the given dtype.
func MakeTypedVar(name string, dtype dtypes.DType) *Variable {
	if name == "" {
		exceptions.Panicf("expr.MakeTypedVar: variable name cannot be empty")
	}
	return &Variable{name: name, dtype: dtype}
}

// MakeStr returns a string literal.
func MakeStr(value string) *Str {
	return &Str{value: value}
}

var noneSingleton = &None{}

// MakeNone returns the "no value" sentinel.
func MakeNone() *None {
	return noneSingleton
}

// IsNone returns whether e is nil or the None sentinel.
func IsNone(e Expr) bool {
	if e == nil {
		return true
	}
	_, ok := e.(*None)
	return ok
}

func makeBinary(kind Kind, lhs, rhs Expr) *Binary {
	if !kind.IsBinary() {
		exceptions.Panicf("expr: %s is not a binary operation", kind)
	}
	var dtype dtypes.DType
	switch {
	case kind.IsComparison():
		dtype = dtypes.Bool
	case kind == KindShl || kind == KindShr:
		dtype = lhs.DType()
	default:
		dtype = promoteOrEither(lhs.DType(), rhs.DType())
	}
	return &Binary{kind: kind, lhs: lhs, rhs: rhs, dtype: dtype}
}

// MakeBinary builds the binary node of the given kind, without folding.
// The operands are converted with AsExpr.
func MakeBinary(kind Kind, lhs, rhs any) *Binary {
	return makeBinary(kind, AsExpr(lhs), AsExpr(rhs))
}

func MakeAdd(a, b any) *Binary { return MakeBinary(KindAdd, a, b) }
func MakeSub(a, b any) *Binary { return MakeBinary(KindSub, a, b) }
func MakeMul(a, b any) *Binary { return MakeBinary(KindMul, a, b) }
func MakeDiv(a, b any) *Binary { return MakeBinary(KindDiv, a, b) }
func MakeMod(a, b any) *Binary { return MakeBinary(KindMod, a, b) }
func MakeMin(a, b any) *Binary { return MakeBinary(KindMin, a, b) }
func MakeMax(a, b any) *Binary { return MakeBinary(KindMax, a, b) }
func MakeEq(a, b any) *Binary  { return MakeBinary(KindEq, a, b) }
func MakeNe(a, b any) *Binary  { return MakeBinary(KindNe, a, b) }
func MakeLt(a, b any) *Binary  { return MakeBinary(KindLt, a, b) }
func MakeLe(a, b any) *Binary  { return MakeBinary(KindLe, a, b) }
func MakeGt(a, b any) *Binary  { return MakeBinary(KindGt, a, b) }
func MakeGe(a, b any) *Binary  { return MakeBinary(KindGe, a, b) }
func MakeAnd(a, b any) *Binary { return MakeBinary(KindAnd, a, b) }
func MakeOr(a, b any) *Binary  { return MakeBinary(KindOr, a, b) }
func MakeXor(a, b any) *Binary { return MakeBinary(KindXor, a, b) }
func MakeShl(a, b any) *Binary { return MakeBinary(KindShl, a, b) }
func MakeShr(a, b any) *Binary { return MakeBinary(KindShr, a, b) }

// MakeNot returns the negation of x: logical for Bool, bitwise for integers.
func MakeNot(x any) *Not {
	return &Not{x: AsExpr(x)}
}

// MakeCast converts x to dtype.
func MakeCast(x any, dtype dtypes.DType) *Cast {
	return &Cast{x: AsExpr(x), dtype: dtype}
}

// MakeCall calls the named primitive. The result dtype must be given, since primitives are opaque.
func MakeCall(name string, dtype dtypes.DType, args ...any) *Call {
	exprs := make([]Expr, len(args))
	for ii, arg := range args {
		exprs[ii] = AsExpr(arg)
	}
	return &Call{name: name, args: exprs, dtype: dtype}
}

// MakeSelect returns the node `cond ? onTrue : onFalse`.
func MakeSelect(cond, onTrue, onFalse any) *Select {
	return &Select{cond: AsExpr(cond), onTrue: AsExpr(onTrue), onFalse: AsExpr(onFalse)}
}

// MakeLet binds the variable to value within body.
//
// The variable can be given as a string, in which case it takes the dtype of value.
func MakeLet(variable any, value, body any) *Let {
	valueExpr := AsExpr(value)
	var v *Variable
	switch x := variable.(type) {
	case *Variable:
		v = x
	case string:
		v = MakeTypedVar(x, valueExpr.DType())
	default:
		exceptions.Panicf("expr.MakeLet: variable must be a string or *Variable, got %T", variable)
	}
	return &Let{variable: v, value: valueExpr, body: AsExpr(body)}
}

// MakeLoad reads element index of the named buffer, whose elements have the given dtype.
func MakeLoad(dtype dtypes.DType, buffer string, index any) *Load {
	return &Load{buffer: MakeTypedVar(buffer, dtype), index: AsExpr(index), dtype: dtype}
}

// MakeReduce builds a symbolic reduction of values over iters.
func MakeReduce(op string, identity []Expr, iters []*IterVar, values []Expr) *Reduce {
	if len(values) == 0 {
		exceptions.Panicf("expr.MakeReduce(%q): at least one value required", op)
	}
	return &Reduce{op: op, identity: identity, iters: iters, values: values}
}

// AsExpr converts x to an Expr:
//
//   - Expr values are returned as is, and an *IterVar is converted to its variable.
//   - Go signed integers become Int literals (int becomes Int64, sized ints keep their width).
//   - Go unsigned integers become UInt literals, floats become Float literals, and bool a Bool literal.
//   - A string becomes an Int64 Variable with that name: use MakeStr for string literals.
//
// Any other type panics.
func AsExpr(x any) Expr {
	switch v := x.(type) {
	case Expr:
		if v == nil {
			exceptions.Panicf("expr.AsExpr: nil expression")
		}
		return v
	case *IterVar:
		return v.Var
	case int:
		return MakeInt(dtypes.Int64, int64(v))
	case int8:
		return MakeInt(dtypes.Int8, int64(v))
	case int16:
		return MakeInt(dtypes.Int16, int64(v))
	case int32:
		return MakeInt(dtypes.Int32, int64(v))
	case int64:
		return MakeInt(dtypes.Int64, v)
	case uint:
		return MakeUInt(dtypes.Uint64, uint64(v))
	case uint8:
		return MakeUInt(dtypes.Uint8, uint64(v))
	case uint16:
		return MakeUInt(dtypes.Uint16, uint64(v))
	case uint32:
		return MakeUInt(dtypes.Uint32, uint64(v))
	case uint64:
		return MakeUInt(dtypes.Uint64, v)
	case float32:
		return MakeFloat(dtypes.Float32, float64(v))
	case float64:
		return MakeFloat(dtypes.Float64, v)
	case bool:
		return MakeBool(v)
	case string:
		return MakeVar(v)
	case nil:
		exceptions.Panicf("expr.AsExpr: nil value")
	}
	exceptions.Panicf("expr.AsExpr: cannot convert value of type %T to an expression", x)
	panic(nil) // Unreachable.
}

// AsExprs converts each of the values with AsExpr.
func AsExprs[T any](values ...T) []Expr {
	exprs := make([]Expr, len(values))
	for ii, v := range values {
		exprs[ii] = AsExpr(v)
	}
	return exprs
}
