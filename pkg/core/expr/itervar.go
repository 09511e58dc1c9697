// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
)

// IterVar is a loop induction variable: Var goes from Start (inclusive) to End (exclusive) in
// increments of Step.
//
// IterVars are created once per tensor axis (or reduction axis) and must not be modified afterward.
type IterVar struct {
	Var              *Variable
	Start, End, Step Expr
}

// MakeIterVar creates an Int64 induction variable. The bounds are converted with AsExpr.
func MakeIterVar(name string, start, end, step any) *IterVar {
	return &IterVar{
		Var:   MakeVar(name),
		Start: AsExpr(start),
		End:   AsExpr(end),
		Step:  AsExpr(step),
	}
}

// MakeAxis creates the induction variable `name in 0..extent`.
func MakeAxis(name string, extent any) *IterVar {
	return MakeIterVar(name, 0, extent, 1)
}

// Extent is the number of iterations: ceil((End-Start)/Step), simplified.
func (iv *IterVar) Extent() Expr {
	span := Minus(iv.End, iv.Start)
	if IsConst(iv.Step, 1) {
		return Simplify(span)
	}
	return Simplify(Quo(Plus(span, Minus(iv.Step, 1)), iv.Step))
}

// WithName returns a copy of the IterVar with a different variable name.
func (iv *IterVar) WithName(name string) *IterVar {
	return &IterVar{Var: MakeTypedVar(name, iv.Var.DType()), Start: iv.Start, End: iv.End, Step: iv.Step}
}

// Equal returns whether the two iteration variables have the same name and bounds.
func (iv *IterVar) Equal(other *IterVar) bool {
	return Equal(iv.Var, other.Var) && Equal(iv.Start, other.Start) && Equal(iv.End, other.End) &&
		Equal(iv.Step, other.Step)
}

// String implements fmt.Stringer, e.g.: "i in 0..n" or "i in 1..n step 2".
func (iv *IterVar) String() string {
	if IsConst(iv.Step, 1) {
		return fmt.Sprintf("%s in %s..%s", iv.Var, iv.Start, iv.End)
	}
	return fmt.Sprintf("%s in %s..%s step %s", iv.Var, iv.Start, iv.End, iv.Step)
}
