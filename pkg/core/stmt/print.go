// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stmt

import (
	"fmt"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/expr"
)

// Indent is the indentation of each nesting level.
const Indent = "    "

type printer struct {
	sb    strings.Builder
	depth int
}

func (p *printer) line(format string, args ...any) {
	if p.sb.Len() > 0 {
		p.sb.WriteByte('\n')
	}
	for range p.depth {
		p.sb.WriteString(Indent)
	}
	fmt.Fprintf(&p.sb, format, args...)
}

func (p *printer) block(s Stmt) {
	p.depth++
	s.write(p)
	p.depth--
}

func render(s Stmt) string {
	var p printer
	s.write(&p)
	return p.sb.String()
}

func (s *For) String() string        { return render(s) }
func (s *LetStmt) String() string    { return render(s) }
func (s *Store) String() string      { return render(s) }
func (s *IfThenElse) String() string { return render(s) }
func (s *Seq) String() string        { return render(s) }
func (s *InplaceAdd) String() string { return render(s) }
func (s *InplaceMul) String() string { return render(s) }
func (s *Assign) String() string     { return render(s) }
func (s *None) String() string       { return "" }

func (s *For) write(p *printer) {
	if expr.IsConst(s.Step, 1) {
		p.line("for %s in %s..%s {", s.Var, s.Start, s.End)
	} else {
		p.line("for %s in %s..%s step %s {", s.Var, s.Start, s.End, s.Step)
	}
	p.block(s.Body)
	p.line("}")
}

func (s *LetStmt) write(p *printer) {
	if IsNone(s.Body) {
		p.line("let %s = %s;", s.Var, s.Value)
		return
	}
	p.line("let %s = %s in {", s.Var, s.Value)
	p.block(s.Body)
	p.line("}")
}

func (s *Store) write(p *printer) {
	p.line("%s[%s] = %s;", s.Buffer, s.Index, s.Value)
}

func (s *IfThenElse) write(p *printer) {
	cond := s.Cond.String()
	if !strings.HasPrefix(cond, "(") {
		cond = "(" + cond + ")"
	}
	p.line("if %s {", cond)
	p.block(s.Then)
	if !IsNone(s.Else) {
		p.line("} else {")
		p.block(s.Else)
	}
	p.line("}")
}

func (s *Seq) write(p *printer) {
	for _, inner := range s.Stmts {
		inner.write(p)
	}
}

func (s *InplaceAdd) write(p *printer) {
	p.line("%s += %s;", s.Target, s.Delta)
}

func (s *InplaceMul) write(p *printer) {
	p.line("%s *= %s;", s.Target, s.Factor)
}

func (s *Assign) write(p *printer) {
	p.line("%s = %s;", s.Target, s.Value)
}

func (*None) write(*printer) {}
