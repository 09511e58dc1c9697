// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interp

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/pkg/errors"
)

// Buffer is a dense row-major tensor. Values of every dtype are held as float64.
type Buffer struct {
	Dims []int
	Data []float64
}

// NewBuffer returns a zero-filled Buffer with the given dimensions.
func NewBuffer(dims ...int) *Buffer {
	return &Buffer{Dims: dims, Data: make([]float64, size(dims))}
}

// FromData returns a Buffer with the given data. It fails if the data doesn't match the dimensions.
func FromData(data []float64, dims ...int) (*Buffer, error) {
	if len(data) != size(dims) {
		return nil, errors.Errorf("interp.FromData: %d values for dimensions %v (%d elements)", len(data), dims, size(dims))
	}
	return &Buffer{Dims: dims, Data: data}, nil
}

// Iota returns a Buffer filled with 0, 1, 2, ... in row-major order.
func Iota(dims ...int) *Buffer {
	return &Buffer{Dims: dims, Data: xslices.Iota(0.0, size(dims))}
}

func size(dims []int) int {
	n := 1
	for _, dim := range dims {
		n *= dim
	}
	return n
}

// Size returns the number of elements.
func (b *Buffer) Size() int {
	return len(b.Data)
}

// At returns the element at the given indices.
func (b *Buffer) At(indices ...int) float64 {
	if len(indices) != len(b.Dims) {
		exceptions.Panicf("Buffer.At: %d indices for a rank %d buffer", len(indices), len(b.Dims))
	}
	flat := 0
	for axis, index := range indices {
		if index < 0 || index >= b.Dims[axis] {
			exceptions.Panicf("Buffer.At: index %d out of bounds for axis #%d of dimensions %v", index, axis, b.Dims)
		}
		flat = flat*b.Dims[axis] + index
	}
	return b.Data[flat]
}

// String pretty-prints small buffers, and summarizes large ones.
func (b *Buffer) String() string {
	if len(b.Data) > 64 {
		return fmt.Sprintf("Buffer%v{%v, ...}", b.Dims, b.Data[:8])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Buffer%v", b.Dims)
	if len(b.Dims) == 0 {
		fmt.Fprintf(&sb, "(%g)", b.Data[0])
		return sb.String()
	}
	b.write(&sb, 0, 0)
	return sb.String()
}

func (b *Buffer) write(sb *strings.Builder, axis, offset int) {
	sb.WriteString("{")
	stride := size(b.Dims[axis+1:])
	for ii := range b.Dims[axis] {
		if ii > 0 {
			sb.WriteString(", ")
		}
		if axis == len(b.Dims)-1 {
			fmt.Fprintf(sb, "%g", b.Data[offset+ii])
		} else {
			b.write(sb, axis+1, offset+ii*stride)
		}
	}
	sb.WriteString("}")
}
