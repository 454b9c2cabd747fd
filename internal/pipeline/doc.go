// Package pipeline defines the declaration-time model of an analysis
// pipeline: named jobs, their dependency edges, and the directed acyclic
// graph they form.
//
// A Graph is assembled incrementally with AddJob during the declaration
// phase and sealed with Finalize, which resolves forward references and
// rejects cycles. After Finalize the graph is immutable and safe for
// concurrent reads; the planner and engine only ever query it.
package pipeline
