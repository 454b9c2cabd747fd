// Package app is the composition root. It merges CLI flags, the optional
// HCL config file, and built-in defaults into one run configuration,
// wires the graph, registry, artifact store, and engine together, and
// drives a single pipeline run end to end.
package app
