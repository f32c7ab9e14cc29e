// Package workflow drives the three preparation stages over one output tree.
//
// A Pipeline unpacks an archive bundle into
// "<root>/<LABEL>/1 - raw observation files", decompresses every raw
// observation file there in place, and splits the results into one directory
// per constellation view under "<root>/<LABEL>/2 - split by constellation".
// Stages run strictly one after another. A stage that finds nothing to do, or
// whose individual files fail, does not stop the next stage; the per-file
// outcomes are collected into a Summary and, when a Recorder is attached,
// written to the run history.
//
// Only an unusable source, an unusable configuration, a staging directory
// that cannot be created, or another process holding the same output tree
// aborts a run.
package workflow
