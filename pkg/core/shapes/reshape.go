// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/gomlx/tensorir/pkg/core/expr"
)

// ReshapeGroup maps a run of consecutive axes of the source shape to a run of consecutive axes of
// the target shape with the same number of elements.
//
// A group is one of:
//
//   - 1:1, the axis is kept;
//   - k:1, the From axes are merged into one;
//   - 1:k, the From axis is split into k;
//   - 1:0 or 0:1, a size-1 axis is dropped or inserted.
//
// Size-1 axes may also be part of a merge or a split.
type ReshapeGroup struct {
	From, To []int
}

// Reshape returns the target shape and the grouping of axes that maps operand to it.
//
// The reshape is only valid if it can be expressed as a regrouping of consecutive axes (see
// ReshapeGroup): e.g. [2, 3, 4] to [6, 4] is valid, but [2, 3, 4] to [4, 6] is not, and it
// returns a *ShapeError. Symbolic dimensions are compared as products of their factors, so
// [n, 2, 2] can be reshaped to [n*4] or [2*n, 2].
func Reshape(operand Shape, dimensions ...any) (Shape, []ReshapeGroup, error) {
	target := Make(operand.DType, dimensions...)
	groups, err := ReshapeGroups(operand, target)
	if err != nil {
		return Shape{}, nil, err
	}
	return target, groups, nil
}

// ReshapeGroups returns how the axes of from are regrouped into the axes of to.
// See Reshape.
func ReshapeGroups(from, to Shape) ([]ReshapeGroup, error) {
	fail := func(format string, args ...any) ([]ReshapeGroup, error) {
		return nil, Errorf("Reshape", []Shape{from, to}, format, args...)
	}
	if from.DType != to.DType {
		return fail("reshape cannot change the dtype")
	}
	var groups []ReshapeGroup
	n, m := from.Rank(), to.Rank()
	i, j := 0, 0
	for i < n || j < m {
		fromIsOne := i < n && IsOne(from.Dimensions[i])
		toIsOne := j < m && IsOne(to.Dimensions[j])
		switch {
		case fromIsOne && toIsOne:
			groups = append(groups, ReshapeGroup{From: []int{i}, To: []int{j}})
			i++
			j++
			continue
		case fromIsOne:
			groups = append(groups, ReshapeGroup{From: []int{i}})
			i++
			continue
		case toIsOne:
			groups = append(groups, ReshapeGroup{To: []int{j}})
			j++
			continue
		case i == n || j == m:
			return fail("number of elements don't match")
		}

		group := ReshapeGroup{From: []int{i}, To: []int{j}}
		fromProd, toProd := factorize(from.Dimensions[i]), factorize(to.Dimensions[j])
		i++
		j++
		for !fromProd.equal(toProd) {
			switch {
			case fromProd.divides(toProd):
				if i == n {
					return fail("number of elements don't match")
				}
				fromProd = fromProd.times(factorize(from.Dimensions[i]))
				group.From = append(group.From, i)
				i++
			case toProd.divides(fromProd):
				if j == m {
					return fail("number of elements don't match")
				}
				toProd = toProd.times(factorize(to.Dimensions[j]))
				group.To = append(group.To, j)
				j++
			default:
				return fail("axes %v can't be regrouped into axes %v", group.From, group.To)
			}
		}
		if len(group.From) > 1 && len(group.To) > 1 {
			return fail("axes %v would have to be merged and split again into axes %v: "+
				"it is not a regrouping of consecutive axes", group.From, group.To)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// SameProduct returns whether a and b are provably equal for any value of their variables, comparing
// them as products of their factors. A false result only means equality couldn't be established.
func SameProduct(a, b expr.Expr) bool {
	pa, pb := factorize(a), factorize(b)
	if pa.coef == 0 || pb.coef == 0 {
		return pa.coef == pb.coef
	}
	return pa.equal(pb)
}

// product is a dimension expression normalized to coef * atoms[0] * atoms[1] * ...
// Atoms are the string forms of the non-literal factors, sorted.
type product struct {
	coef  int64
	atoms []string
}

// factorize normalizes a dimension into a product.
// Anything that is not a literal or a multiplication becomes a single atom.
func factorize(e expr.Expr) product {
	e = expr.Simplify(e)
	if v, ok := expr.IntValue(e); ok {
		return product{coef: v}
	}
	if b, ok := e.(*expr.Binary); ok && b.Op() == expr.KindMul {
		return factorize(b.Lhs()).times(factorize(b.Rhs()))
	}
	return product{coef: 1, atoms: []string{e.String()}}
}

func (p product) times(other product) product {
	atoms := append(slices.Clone(p.atoms), other.atoms...)
	slices.Sort(atoms)
	return product{coef: p.coef * other.coef, atoms: atoms}
}

func (p product) equal(other product) bool {
	return p.coef == other.coef && slices.Equal(p.atoms, other.atoms)
}

// divides returns whether other = p * k for some product k with at least one factor.
func (p product) divides(other product) bool {
	if p.coef == 0 || other.coef%p.coef != 0 {
		return false
	}
	remaining := slices.Clone(other.atoms)
	for _, atom := range p.atoms {
		idx := slices.Index(remaining, atom)
		if idx < 0 {
			return false
		}
		remaining = slices.Delete(remaining, idx, idx+1)
	}
	return true
}
