// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tensorir_lower builds one of a few example graphs, lowers it to loop nests and prints the
// kernels, along with the buffers they use.
//
// Usage:
//
//	tensorir_lower -example=max -dims=n=3,m=4 -run
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/tensorir/pkg/core/expr"
	"github.com/gomlx/tensorir/pkg/core/graph"
	"github.com/gomlx/tensorir/pkg/core/interp"
	"github.com/gomlx/tensorir/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagExample = flag.String("example", "sum", "Example graph to lower, one of: "+exampleNamesList()+".")
	flagName    = flag.String("name", "", "Prefix of the kernel names. The default is a random one.")
	flagDims    = xslices.Flag("dims", []string{"n=3", "m=4"},
		"Comma-separated values of the symbolic dimensions, e.g.: \"n=3,m=4\". "+
			"They are used for the buffers table and by -run.", func(value string) (string, error) { return value, nil })
	flagRun = flag.Bool("run", false, "Run the kernels with iota inputs and print the outputs.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'tensorir_lower -help'.", flag.Args())
		os.Exit(1)
	}
	ex, found := examples[*flagExample]
	if !found {
		klog.Errorf("Unknown example %q, valid examples are: %s", *flagExample, exampleNamesList())
		os.Exit(1)
	}
	env, err := parseDims(*flagDims)
	if err != nil {
		klog.Errorf("Invalid -dims: %+v", err)
		os.Exit(1)
	}
	if err := report(ex, env); err != nil {
		klog.Errorf("Example %q failed: %+v", *flagExample, err)
		os.Exit(1)
	}
}

// parseDims parses "name=value" pairs.
func parseDims(pairs []string) (expr.Env, error) {
	env := make(expr.Env, len(pairs))
	for _, pair := range pairs {
		name, valueStr, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, errors.Errorf("dimension %q must be given as name=value", pair)
		}
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value of dimension %q", name)
		}
		if value < 0 {
			return nil, errors.Errorf("dimension %q can't be negative, got %d", name, value)
		}
		env[name] = value
	}
	return env, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	kernelStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func report(ex example, env expr.Env) error {
	c := graph.New()
	outputs, err := ex.build(c)
	if err != nil {
		return err
	}
	// Examples never return placeholders, so they can always be scheduled.
	s := must.M1(c.Schedule(outputs...))
	if *flagName != "" {
		s.WithName(*flagName)
	}
	kernels := s.Kernels()

	out := termenv.NewOutput(os.Stdout)
	fmt.Println(titleStyle.Render(ex.description))
	for _, k := range kernels {
		header := out.String(fmt.Sprintf("kernel %s -> %s", k.Name, k.Output)).Bold()
		fmt.Println(header)
		fmt.Println(kernelStyle.Render(k.Stmt.String()))
		fmt.Println()
	}

	rows, err := buffersTable(kernels, env)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Buffers"))
	fmt.Println(rows.Render())

	if !*flagRun {
		return nil
	}
	inputs, err := iotaInputs(kernels, env)
	if err != nil {
		return err
	}
	results, err := interp.New().RunKernels(kernels, inputs)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Results"))
	for ii, k := range kernels {
		fmt.Printf("%s = %s\n", out.String(k.Output.BufferName()).Bold(), results[ii])
	}
	return nil
}

// iotaInputs creates one input per leaf of the kernels, filled with 0, 1, 2, ...
func iotaInputs(kernels []*graph.Kernel, env expr.Env) (map[graph.NodeId]*interp.Buffer, error) {
	inputs := make(map[graph.NodeId]*interp.Buffer)
	for _, leaf := range leaves(kernels) {
		dims, err := leaf.Shape.Concrete(env)
		if err != nil {
			return nil, errors.WithMessagef(err, "input %s", leaf)
		}
		inputs[leaf.ID] = interp.Iota(dims...)
	}
	return inputs, nil
}
