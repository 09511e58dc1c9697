// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/dtypes"
)

func (e *Int) String() string {
	if e.dtype == dtypes.Bool {
		return strconv.FormatBool(e.value != 0)
	}
	return strconv.FormatInt(e.value, 10)
}

func (e *UInt) String() string {
	return strconv.FormatUint(e.value, 10)
}

func (e *Float) String() string {
	s := strconv.FormatFloat(e.value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		// Keep floats distinguishable from integers.
		s += ".0"
	}
	return s
}

func (e *Str) String() string {
	return strconv.Quote(e.value)
}

func (e *Variable) String() string {
	return e.name
}

func (e *Binary) String() string {
	switch e.kind {
	case KindMin, KindMax:
		return fmt.Sprintf("%s(%s, %s)", e.kind.Symbol(), e.lhs, e.rhs)
	}
	return fmt.Sprintf("(%s %s %s)", e.lhs, e.kind.Symbol(), e.rhs)
}

func (e *Not) String() string {
	return "!" + e.x.String()
}

func (e *Cast) String() string {
	return fmt.Sprintf("%s(%s)", strings.ToLower(e.dtype.String()), e.x)
}

func (e *Call) String() string {
	return fmt.Sprintf("%s(%s)", e.name, joinExprs(e.args))
}

func (e *Select) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", e.cond, e.onTrue, e.onFalse)
}

func (e *Let) String() string {
	return fmt.Sprintf("(let %s = %s in %s)", e.variable, e.value, e.body)
}

func (e *Load) String() string {
	return fmt.Sprintf("%s[%s]", e.buffer, e.index)
}

func (e *Reduce) String() string {
	iters := make([]string, len(e.iters))
	for ii, iv := range e.iters {
		iters[ii] = iv.String()
	}
	return fmt.Sprintf("reduce_%s(%s; %s; init=%s)", e.op, joinExprs(e.values), strings.Join(iters, ", "),
		joinExprs(e.identity))
}

func (*None) String() string {
	return "none"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for ii, e := range exprs {
		parts[ii] = e.String()
	}
	return strings.Join(parts, ", ")
}
