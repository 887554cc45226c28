// Package core provides the business logic for configuring and processing
// astronomical data projects.
//
// This package is the heart of the API, containing all domain logic
// independent of any transport layer. It can be used by web handlers,
// the CLI, or tests without modification.
//
// # Pipeline
//
// Source files flow through five stages:
//
//  1. [BuildVariableRanges] scans one file and reports the observed range and
//     unit of every variable it exposes.
//  2. [AggregateConfig] merges the per-file ranges of a project into one
//     [ProjectConfig] keyed by variable name, widening bounds across files.
//  3. [ReconcileConfig] applies a user-submitted configuration, clamping the
//     selected sub-range of each variable into the bounds observed on disk.
//  4. [ExtractTable] loads the selected variables of one file, drops
//     non-finite rows, filters by the selected bounds and downsamples.
//  5. [Combine] runs the extractor over every project file, concatenates the
//     results and removes duplicate rows.
//
// Stages 1, 2, 3 and 5 are deterministic. Stage 4 draws a random sample
// whenever downsampling is below 1.
//
// # Service
//
// [Service] wires the pipeline to a persistent [Store], a [source.Reader]
// and an optional [SnapshotWriter]. It is the entry point for the web and
// CLI layers.
//
// # Error Handling
//
// Failures are reported as typed errors ([SourceReadError],
// [ConfigNotFoundError], [InvalidRangeError], [ProjectNotFoundError], ...).
// [MapError] turns any error into a user-friendly message with a support
// code:
//
//   - SRC001-SRC003: Source file errors (unreadable, unsupported, empty)
//   - PRJ001-PRJ003: Project errors (not found, file extensions, mixed types)
//   - CFG001-CFG003: Configuration errors (not found, invalid range, invalid value)
//   - PROC001-PROC003: Processing errors (busy, cancelled, timeout)
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - RATE001: Too many requests
package core
