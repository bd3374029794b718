// Package depsolve orders a package dependency graph so that every package
// comes after all of its dependencies.
package depsolve

import (
	"fmt"
	"strings"
)

// Graph maps a node name to the names of its direct dependencies.
// Dependencies are visited in slice order, which makes the result
// deterministic.
type Graph map[string][]string

// Options tunes Resolve
type Options struct {
	// IgnoreMissing treats nodes absent from the graph as leaves instead of
	// failing with a MissingDependencyError. They still appear in the output.
	IgnoreMissing bool
}

// CycleError is returned when the subgraph reachable from the roots
// contains a cycle
type CycleError struct {
	// Cycle lists the nodes of the cycle, the first node repeated at the end
	Cycle []string
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// MissingDependencyError is returned when a node references a dependency
// that is not in the graph
type MissingDependencyError struct {
	// Package is the node declaring the dependency, "" for a missing root
	Package    string
	Dependency string
}

// Error implements the error interface
func (e *MissingDependencyError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("unknown package: %s", e.Dependency)
	}
	return fmt.Sprintf("%s depends on unknown package %s", e.Package, e.Dependency)
}

type state int

const (
	unvisited state = iota
	visiting
	done
)

type resolver struct {
	graph Graph
	opts  Options
	state map[string]state
	stack []string
	order []string
}

// Resolve returns every node reachable from roots, each exactly once, in
// dependency-first order. Roots are processed in the given order.
func Resolve(graph Graph, roots []string, opts Options) ([]string, error) {
	r := &resolver{
		graph: graph,
		opts:  opts,
		state: make(map[string]state),
	}

	for _, root := range roots {
		if err := r.visit("", root); err != nil {
			return nil, err
		}
	}
	return r.order, nil
}

func (r *resolver) visit(parent, name string) error {
	switch r.state[name] {
	case done:
		return nil
	case visiting:
		return &CycleError{Cycle: r.cycleFrom(name)}
	}

	deps, known := r.graph[name]
	if !known && !r.opts.IgnoreMissing {
		return &MissingDependencyError{Package: parent, Dependency: name}
	}

	r.state[name] = visiting
	r.stack = append(r.stack, name)

	for _, dep := range deps {
		if err := r.visit(name, dep); err != nil {
			return err
		}
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[name] = done
	r.order = append(r.order, name)
	return nil
}

// cycleFrom extracts the cycle closing on name from the current stack
func (r *resolver) cycleFrom(name string) []string {
	for i, n := range r.stack {
		if n == name {
			cycle := append([]string{}, r.stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}
