// Package core runs the ingestion pipeline and owns its long-lived state.
//
// A [Service] holds the lookup cache, the converter settings, the resource
// advisor and the sinks. Web handlers and CLI commands share one Service so
// that repeated runs against the same lookup file reuse the cached table.
//
// # Pipeline
//
// [Service.Run] executes one [RunRequest] through these phases, each timed
// as a perf step:
//
//  1. converting: the input is converted to canonical CSV when needed
//  2. validating: the canonical CSV header line is checked
//  3. loading: the canonical file is read into a dataset
//  4. enriching: column names are normalized and, when a lookup is
//     configured, the dataset is left-joined against it
//  5. writing: the result goes to CSV, Parquet or PostgreSQL (skipped on
//     dry runs)
//
// [Service.RunBatch] runs several requests concurrently, bounded by the
// [JobLimiter]. Every run is recorded in an in-memory history retrievable
// with [Service.GetRun] and [Service.Runs].
//
// # Error Handling
//
// Run failures are returned as errors and also recorded on the [RunResult]
// together with the user-facing message from errs.Map.
package core
