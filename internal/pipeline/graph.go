package pipeline

import (
	"fmt"
	"sync"
)

// Graph is the registry of JobSpecs plus the DAG they form. Declaration
// order is preserved so that independent jobs always sort the same way.
type Graph struct {
	mu        sync.RWMutex
	jobs      map[string]*JobSpec
	order     []string // declaration order, drives deterministic tie-breaks
	finalized bool
	topo      []string // cached by Finalize
}

// NewGraph returns an initialized, empty Graph.
func NewGraph() *Graph {
	return &Graph{jobs: make(map[string]*JobSpec)}
}

// AddJob declares a job in the graph. It fails with DuplicateJobError if
// the name is already taken. Dependencies may reference jobs that have
// not been added yet; they must all resolve by Finalize.
func (g *Graph) AddJob(spec JobSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return fmt.Errorf("cannot add job %q: graph is finalized", spec.Name)
	}
	if spec.Name == "" {
		return fmt.Errorf("job name must not be empty")
	}
	if _, exists := g.jobs[spec.Name]; exists {
		return &DuplicateJobError{Name: spec.Name}
	}
	for _, dep := range spec.DependsOn {
		if dep == spec.Name {
			return &CycleError{Members: []string{spec.Name, spec.Name}}
		}
	}
	if spec.Config == nil {
		spec.Config = EmptyConfig()
	}

	g.jobs[spec.Name] = &spec
	g.order = append(g.order, spec.Name)
	return nil
}

// Finalize validates that every dependency resolves and that the edge
// relation is acyclic, then seals the graph and caches a deterministic
// topological order. It is idempotent.
func (g *Graph) Finalize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return nil
	}

	for _, name := range g.order {
		for _, dep := range g.jobs[name].DependsOn {
			if _, ok := g.jobs[dep]; !ok {
				return &UnknownDependencyError{Job: name, Dependency: dep}
			}
		}
	}

	if err := g.detectCycles(); err != nil {
		return err
	}

	g.topo = g.sortTopologically()
	g.finalized = true
	return nil
}

// detectCycles runs a depth-first traversal over the dependency edges,
// tracking the in-progress set; a back-edge into it signals a cycle.
func (g *Graph) detectCycles() error {
	done := make(map[string]bool, len(g.jobs))
	inProgress := make(map[string]bool, len(g.jobs))
	var stack []string

	var visit func(name string) *CycleError
	visit = func(name string) *CycleError {
		if done[name] {
			return nil
		}
		if inProgress[name] {
			// Slice the stack back to the first occurrence to name the
			// actual cycle members rather than the whole traversal path.
			start := 0
			for i, member := range stack {
				if member == name {
					start = i
					break
				}
			}
			members := append(append([]string{}, stack[start:]...), name)
			return &CycleError{Members: members}
		}

		inProgress[name] = true
		stack = append(stack, name)
		for _, dep := range g.jobs[name].DependsOn {
			if cerr := visit(dep); cerr != nil {
				return cerr
			}
		}
		stack = stack[:len(stack)-1]
		delete(inProgress, name)
		done[name] = true
		return nil
	}

	for _, name := range g.order {
		if cerr := visit(name); cerr != nil {
			return cerr
		}
	}
	return nil
}

// sortTopologically produces a total order consistent with every edge.
// Ties between independent jobs are broken by declaration order, so two
// calls over the same graph always agree. Caller holds the lock.
func (g *Graph) sortTopologically() []string {
	indegree := make(map[string]int, len(g.jobs))
	for _, name := range g.order {
		indegree[name] = len(g.jobs[name].DependsOn)
	}

	dependents := g.dependentIndex()

	sorted := make([]string, 0, len(g.order))
	emitted := make(map[string]bool, len(g.order))
	for len(sorted) < len(g.order) {
		// Pick the earliest-declared job with no unresolved dependency.
		for _, name := range g.order {
			if emitted[name] || indegree[name] != 0 {
				continue
			}
			emitted[name] = true
			sorted = append(sorted, name)
			for _, dependent := range dependents[name] {
				indegree[dependent]--
			}
			break
		}
	}
	return sorted
}

// dependentIndex builds the reverse adjacency (dependency -> dependents)
// with dependents listed in declaration order. Caller holds the lock.
func (g *Graph) dependentIndex() map[string][]string {
	index := make(map[string][]string, len(g.jobs))
	for _, name := range g.order {
		for _, dep := range g.jobs[name].DependsOn {
			index[dep] = append(index[dep], name)
		}
	}
	return index
}

// Job returns the spec declared under name.
func (g *Graph) Job(name string) (*JobSpec, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	spec, ok := g.jobs[name]
	return spec, ok
}

// Names returns every declared job name in declaration order.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.order...)
}

// Len reports the number of declared jobs.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.jobs)
}

// TopologicalOrder returns the deterministic total order computed by
// Finalize. It panics if the graph has not been finalized, which is a
// programming error.
func (g *Graph) TopologicalOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.finalized {
		panic("pipeline: TopologicalOrder called before Finalize")
	}
	return append([]string{}, g.topo...)
}

// DependenciesOf returns the declared dependency names of a job.
func (g *Graph) DependenciesOf(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	spec, ok := g.jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job: %q", name)
	}
	return append([]string{}, spec.DependsOn...), nil
}

// AncestorsOf returns the transitive closure of a job's dependencies.
func (g *Graph) AncestorsOf(name string) (map[string]struct{}, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.jobs[name]; !ok {
		return nil, fmt.Errorf("unknown job: %q", name)
	}

	closure := make(map[string]struct{})
	queue := append([]string{}, g.jobs[name].DependsOn...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := closure[current]; seen {
			continue
		}
		closure[current] = struct{}{}
		queue = append(queue, g.jobs[current].DependsOn...)
	}
	return closure, nil
}

// DescendantsOf returns the transitive closure of the jobs depending on
// the named job.
func (g *Graph) DescendantsOf(name string) (map[string]struct{}, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.jobs[name]; !ok {
		return nil, fmt.Errorf("unknown job: %q", name)
	}

	dependents := g.dependentIndex()
	closure := make(map[string]struct{})
	queue := append([]string{}, dependents[name]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := closure[current]; seen {
			continue
		}
		closure[current] = struct{}{}
		queue = append(queue, dependents[current]...)
	}
	return closure, nil
}
