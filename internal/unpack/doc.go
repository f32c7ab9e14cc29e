// Package unpack turns an archive bundle into a flat directory of raw
// observation files.
//
// The source is either one zip archive, whose contents are extracted into the
// first staging directory, or a directory whose top-level zip archives are
// copied there unextracted. Every archive sitting directly in the first
// staging directory is then extracted into the second, and every raw
// observation file found anywhere below the second is moved into the
// destination. Both staging directories belong to a single run and are
// removed before Unpack returns, on every path.
//
// A nested archive that cannot be read is reported and skipped. Only an
// unusable source or an unwritable staging directory aborts the call.
package unpack
