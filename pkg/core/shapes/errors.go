// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ShapeError is returned when an operation is given incompatible shapes: broadcasting of
// mismatched dimensions, reduction axes out of range, invalid slices or reshapes that are not a
// regrouping of contiguous axes.
//
// Use errors.As to test for it.
type ShapeError struct {
	// Op is the name of the operation, e.g. "Add" or "Reshape".
	Op string

	// Shapes involved in the operation.
	Shapes []Shape

	// Err describes the problem. It may combine several errors (see go.uber.org/multierr).
	Err error
}

// Error implements error.
func (e *ShapeError) Error() string {
	parts := make([]string, len(e.Shapes))
	for ii, s := range e.Shapes {
		parts[ii] = s.String()
	}
	return fmt.Sprintf("%s: %v (shapes %s)", e.Op, e.Err, strings.Join(parts, ", "))
}

// Unwrap returns the underlying cause.
func (e *ShapeError) Unwrap() error {
	return e.Err
}

// newShapeError returns a *ShapeError with a stack trace.
func newShapeError(op string, err error, shapes ...Shape) error {
	return errors.WithStack(&ShapeError{Op: op, Shapes: shapes, Err: err})
}

// Errorf returns a *ShapeError for op with a formatted reason.
func Errorf(op string, shapes []Shape, format string, args ...any) error {
	return newShapeError(op, errors.Errorf(format, args...), shapes...)
}

// IsShapeError returns whether err is or wraps a *ShapeError.
func IsShapeError(err error) bool {
	var shapeErr *ShapeError
	return errors.As(err, &shapeErr)
}
