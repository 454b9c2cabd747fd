// Package artifact provides the result store consulted by the execution
// engine when a run is invoked with the skip-existing policy, plus the
// persistence of finished run reports.
//
// The engine only ever reads through the Cache interface; jobs write
// through Store as they produce outputs. The fingerprint is opaque to
// the engine: it identifies the input unit a result was produced for
// and is computed outside the engine.
package artifact

import "context"

// Fingerprint identifies the input unit a result belongs to. The engine
// treats it as a capability, never inspecting its contents.
type Fingerprint string

// Cache answers whether a job's output already exists for an input.
// Absence is a normal false, never an error.
type Cache interface {
	HasResult(ctx context.Context, job string, fp Fingerprint) (bool, error)
}

// Store extends Cache with the write side used by job bodies.
type Store interface {
	Cache
	PutResult(ctx context.Context, job string, fp Fingerprint, outputPath string) error
}
