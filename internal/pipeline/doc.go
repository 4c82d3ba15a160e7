// Package pipeline runs one ETL run: extract, transform and load, in that
// order. A failed stage skips the stages after it and fails the run.
//
// Each run gets a uuid that doubles as the log trace id. The runner opens a
// span per run and per stage and records run and stage durations.
package pipeline
