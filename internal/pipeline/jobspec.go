package pipeline

// ConfigFactory produces a job's runtime parameters at the moment the job
// is about to execute, not when the pipeline was declared. The engine
// invokes it at most once per execution attempt and never caches its
// output across runs, so each call may reflect current external state.
type ConfigFactory func() map[string]any

// EmptyConfig returns a factory producing no parameters. Each call
// constructs an independent factory so no two JobSpecs ever share one.
func EmptyConfig() ConfigFactory {
	return func() map[string]any { return map[string]any{} }
}

// JobSpec is the immutable descriptor of one job in a pipeline.
type JobSpec struct {
	// Name uniquely identifies the job within its graph.
	Name string

	// DependsOn lists the jobs that must finish successfully before this
	// one may run. Forward references are allowed until Finalize.
	DependsOn []string

	// Config produces the job's runtime parameters. Nil is treated as
	// an empty parameter set.
	Config ConfigFactory

	// Description is human-readable and carries no semantic role.
	Description string
}
