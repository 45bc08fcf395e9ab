// Package core runs exports: it wires the dump reader, the per-kind
// decomposer and the CSV sink into one sequential pipeline per entity kind.
//
// # Architecture
//
// One run exports one kind:
//
//   - The input dump is located (or given), opened and decompressed by
//     package dump, which yields one entity at a time.
//   - The decomposer of the kind, chosen once by [NewExporter], turns each
//     entity into a primary row and child rows.
//   - The sink writes rows to per-table CSV files under .partial names and
//     renames them on success.
//
// Memory is bounded by one entity. Nothing is shared between runs of
// different kinds, so [ExportAll] runs them in parallel.
//
// # Run State
//
// A run moves Idle -> Reading -> (Decomposing -> Writing)* and ends in
// Completed or Aborted. Every transition is checked against a fixed table.
// Hitting the row limit completes the run with LimitReached set.
//
// # Error Handling
//
// A failed run returns an [*ExportError] with a class and a support code
// (PARSE001, IO002, ...). [MapError] and [FormatUserError] turn any error
// into a one-line message for the command line.
package core
