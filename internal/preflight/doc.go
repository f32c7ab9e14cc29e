// Package preflight checks that a pipeline run can start: the configured
// tools resolve and the staging, state and output directories are usable.
//
// The run command calls RunAll once before any stage executes and refuses to
// start when a check fails. "gnssprep check" prints the same results.
package preflight
