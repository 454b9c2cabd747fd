// Package planner computes the exact subgraph of jobs to run for one
// request, given optional start and stop boundaries over a finalized
// pipeline graph.
package planner

import (
	"fmt"

	"github.com/abca4/fafpipe/internal/pipeline"
)

// Plan is the subset and order of jobs selected for one run. Included is
// the restriction of the graph's topological order to the selected set;
// Excluded holds every other declared job, in declaration order. A plan
// is recomputed fresh per run request and never persisted.
type Plan struct {
	Included []string
	Excluded []string

	// Warning is set when the requested boundaries admit no path, in
	// which case Included is empty. Running nothing is a valid outcome,
	// not an error.
	Warning *DisjointBoundaryWarning
}

// DisjointBoundaryWarning reports that no path exists from the requested
// start boundary to the requested stop boundary.
type DisjointBoundaryWarning struct {
	StartFrom string
	StopAfter string
}

func (w *DisjointBoundaryWarning) Error() string {
	return fmt.Sprintf("no path from %q to %q: nothing to run", w.StartFrom, w.StopAfter)
}

// Compute selects the jobs to run.
//
// With a start boundary S the included set is {S} plus its descendants:
// ancestors of S are assumed to have already produced their outputs and
// are not re-run. With a stop boundary T the set is intersected with {T}
// plus its ancestors. Both together select the jobs on some path from S
// to T, inclusive. An unknown boundary name is an error; disjoint
// boundaries yield an empty plan carrying a DisjointBoundaryWarning.
func Compute(g *pipeline.Graph, startFrom, stopAfter string) (*Plan, error) {
	included := make(map[string]struct{}, g.Len())
	for _, name := range g.Names() {
		included[name] = struct{}{}
	}

	if startFrom != "" {
		lower, err := g.DescendantsOf(startFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid start boundary: %w", err)
		}
		lower[startFrom] = struct{}{}
		intersect(included, lower)
	}

	if stopAfter != "" {
		upper, err := g.AncestorsOf(stopAfter)
		if err != nil {
			return nil, fmt.Errorf("invalid stop boundary: %w", err)
		}
		upper[stopAfter] = struct{}{}
		intersect(included, upper)
	}

	plan := &Plan{}
	for _, name := range g.TopologicalOrder() {
		if _, ok := included[name]; ok {
			plan.Included = append(plan.Included, name)
		}
	}
	for _, name := range g.Names() {
		if _, ok := included[name]; !ok {
			plan.Excluded = append(plan.Excluded, name)
		}
	}

	if len(plan.Included) == 0 && g.Len() > 0 {
		plan.Warning = &DisjointBoundaryWarning{StartFrom: startFrom, StopAfter: stopAfter}
	}
	return plan, nil
}

// intersect shrinks set to its intersection with keep.
func intersect(set, keep map[string]struct{}) {
	for name := range set {
		if _, ok := keep[name]; !ok {
			delete(set, name)
		}
	}
}
