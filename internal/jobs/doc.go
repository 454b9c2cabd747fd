// Package jobs declares the fundus-autofluorescence analysis pipeline:
// the concrete job bodies, their parameter defaults, and the default
// dependency graph wiring them together.
//
// The heavy image processing behind each step lives outside this
// repository; the bodies here perform the orchestration-visible part of
// a step: validate the input, resolve the step's workfile path under
// the work directory, emit the step record, and register the result in
// the artifact store so later runs can skip it.
package jobs
