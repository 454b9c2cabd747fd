package pipeline

import (
	"fmt"
	"strings"
)

// DuplicateJobError is returned by AddJob when a job name is already
// registered in the graph.
type DuplicateJobError struct {
	Name string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %q is already declared in the graph", e.Name)
}

// UnknownDependencyError is returned by Finalize when a job references a
// dependency that was never declared.
type UnknownDependencyError struct {
	Job        string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("job %q depends on unknown job %q", e.Job, e.Dependency)
}

// CycleError is returned by Finalize when the dependency relation is not
// acyclic. Members holds the jobs on the detected cycle, in traversal
// order.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Members, " -> "))
}
