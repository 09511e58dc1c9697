// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/pkg/errors"
)

// Bind extracts the values of the symbolic dimensions of pattern from the concrete dimensions of
// an actual tensor, and merges them into env (which may be nil).
//
// Literal dimensions must match exactly. Dimensions that are expressions (e.g. "n*2") are checked
// after all plain variables are bound.
//
// It returns an error if:
//   - ranks differ;
//   - a literal dimension doesn't match;
//   - the same variable would be bound to different values;
//   - a compound dimension evaluates to something different from the concrete dimension.
func Bind(env expr.Env, pattern Shape, concrete []int) (expr.Env, error) {
	if pattern.Rank() != len(concrete) {
		return nil, errors.Errorf("rank mismatch: shape %s has rank %d, concrete dimensions %v have rank %d",
			pattern, pattern.Rank(), concrete, len(concrete))
	}
	bound := maps.Clone(env)
	if bound == nil {
		bound = make(expr.Env)
	}
	var compound []int
	for axis, dim := range pattern.Dimensions {
		value := int64(concrete[axis])
		switch d := dim.(type) {
		case *expr.Variable:
			if existing, found := bound[d.Name()]; found && existing != value {
				return nil, errors.Errorf("dimension %q has conflicting values at axis #%d: %d vs %d",
					d.Name(), axis, existing, value)
			}
			bound[d.Name()] = value
		default:
			if v, ok := expr.IntValue(dim); ok {
				if v != value {
					return nil, errors.Errorf("axis #%d of %s is %d, but got concrete dimension %d",
						axis, pattern, v, value)
				}
				continue
			}
			compound = append(compound, axis)
		}
	}
	for _, axis := range compound {
		v, err := expr.EvalInt(pattern.Dimensions[axis], bound)
		if err != nil {
			return nil, errors.WithMessagef(err, "can't bind axis #%d of %s", axis, pattern)
		}
		if v != int64(concrete[axis]) {
			return nil, errors.Errorf("axis #%d of %s evaluates to %d, but got concrete dimension %d",
				axis, pattern, v, concrete[axis])
		}
	}
	return bound, nil
}

// MergeEnv merges the bindings of other into env. It returns an error on conflicting values.
func MergeEnv(env, other expr.Env) error {
	for name, value := range other {
		if existing, found := env[name]; found && existing != value {
			return errors.Errorf("conflicting values for dimension %q: %d vs %d", name, existing, value)
		}
		env[name] = value
	}
	return nil
}

// EnvKey returns a canonical string for the environment, "name1=val1,name2=val2" with names
// sorted. It can be used to key caches of plans computed for a given env.
func EnvKey(env expr.Env) string {
	if len(env) == 0 {
		return ""
	}
	names := slices.Sorted(maps.Keys(env))
	parts := make([]string, len(names))
	for ii, name := range names {
		parts[ii] = fmt.Sprintf("%s=%d", name, env[name])
	}
	return strings.Join(parts, ",")
}
