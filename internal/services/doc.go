// Package services defines shared utilities consumed by the pipeline stages
// and the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into fatal (invalid source, configuration) and per-file outcomes.
//   - Subpackages wrapping the CRX2RNX decompressor and the teqc
//     constellation filter behind testable executors.
package services
