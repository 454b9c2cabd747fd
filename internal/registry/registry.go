// Package registry maps job names to the Go functions that implement
// them. The table is closed and resolved once at graph-build time: the
// engine never dispatches on anything looser than a registered name, and
// validation catches a declared job with no body before any run starts.
package registry

import (
	"context"
	"fmt"

	"github.com/abca4/fafpipe/internal/pipeline"
)

// Body is the contract the engine requires from a job implementation: it
// receives the parameters resolved by the job's ConfigFactory and
// reports success or a structured failure. Everything else about the
// job is opaque.
type Body func(ctx context.Context, params map[string]any) error

// UnregisteredJobError reports a declared job with no registered body.
type UnregisteredJobError struct {
	Name string
}

func (e *UnregisteredJobError) Error() string {
	return fmt.Sprintf("job %q has no registered body", e.Name)
}

// Registry holds the job bodies for a single application instance.
type Registry struct {
	bodies map[string]Body
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{bodies: make(map[string]Body)}
}

// Register binds a body to a job name. Rebinding a name is a
// programming error.
func (r *Registry) Register(name string, body Body) error {
	if name == "" {
		return fmt.Errorf("cannot register a body under an empty name")
	}
	if body == nil {
		return fmt.Errorf("cannot register a nil body for %q", name)
	}
	if _, exists := r.bodies[name]; exists {
		return fmt.Errorf("body for %q is already registered", name)
	}
	r.bodies[name] = body
	return nil
}

// Body looks up the implementation bound to name.
func (r *Registry) Body(name string) (Body, bool) {
	body, ok := r.bodies[name]
	return body, ok
}

// Validate checks that every job declared in the graph has a body.
func (r *Registry) Validate(g *pipeline.Graph) error {
	for _, name := range g.Names() {
		if _, ok := r.bodies[name]; !ok {
			return &UnregisteredJobError{Name: name}
		}
	}
	return nil
}
