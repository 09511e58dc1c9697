// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/support/sets"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/pkg/errors"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

// leaves returns the distinct leaves read by the kernels, ordered by id.
func leaves(kernels []*graph.Kernel) []graph.Tensor {
	ids := sets.Make[graph.NodeId]()
	byID := make(map[graph.NodeId]graph.Tensor)
	for _, k := range kernels {
		for _, leaf := range k.Leaves() {
			ids.Insert(leaf.ID)
			byID[leaf.ID] = leaf
		}
	}
	return xslices.Map(sets.Sorted(ids), func(id graph.NodeId) graph.Tensor { return byID[id] })
}

// buffersTable lists the inputs and outputs of the kernels with their sizes for the given dimensions.
func buffersTable(kernels []*graph.Kernel, env expr.Env) (*lgtable.Table, error) {
	table := newPlainTable(true)
	table.Row("Buffer", "Role", "Shape", "Elements", "Bytes")
	addRow := func(t graph.Tensor, role string) error {
		size, err := t.Shape.ConcreteSize(env)
		if err != nil {
			return errors.WithMessagef(err, "buffer %s", t)
		}
		memory, err := t.Shape.Memory(env)
		if err != nil {
			return errors.WithMessagef(err, "buffer %s", t)
		}
		table.Row(t.BufferName(), role, t.Shape.String(),
			humanize.Comma(int64(size)), humanize.Bytes(uint64(memory)))
		return nil
	}
	for _, leaf := range leaves(kernels) {
		if err := addRow(leaf, "input"); err != nil {
			return nil, err
		}
	}
	for _, k := range kernels {
		if err := addRow(k.Output, "output of "+k.Name); err != nil {
			return nil, err
		}
	}
	return table, nil
}
