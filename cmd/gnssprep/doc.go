// Package main hosts the gnssprep CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds a workflow
// pipeline around it and renders per-file outcomes and stage summaries.
// Stage semantics live in internal packages; commands here only parse
// arguments and present results.
package main
