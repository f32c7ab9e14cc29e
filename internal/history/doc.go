// Package history keeps a SQLite ledger of pipeline runs.
//
// Every run gets a row in runs and every per-file task outcome, including
// archives skipped during unpacking, a row in task_outcomes. The ledger
// answers the question a console log cannot: how many files of a run
// succeeded, per stage.
package history
