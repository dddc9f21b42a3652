// Package core imports a salon's historical appointments from a file.
//
// This package holds all import logic independent of any transport or
// database. The web layer and tests drive it through [Service]; storage is
// reached only through the collaborator interfaces in types.go.
//
// # Pipeline
//
//  1. [Service.Ingest] parses a CSV, JSON, XLSX or XLS upload into an
//     [ImportJob] and its rows, and suggests a column mapping from the
//     header.
//  2. [Service.Validate] maps and validates every row, matches imported
//     service names against the salon catalog, and resolves clients
//     against existing accounts. Nothing is written.
//  3. [Service.StartBatch] repeats that work in the background and commits
//     every valid row as a completed appointment, creating guest accounts
//     for unknown clients when asked to.
//  4. [Service.PollStatus] and [Service.Subscribe] report batch progress.
//  5. [Service.FetchErrorReport] lists the rows that were not imported once
//     the batch is terminal.
//
// # Service Matching
//
// Imported service names are normalized (case-folded, trimmed, whitespace
// collapsed) and compared with [Similarity], a weighted Levenshtein
// similarity in which swapping a letter for an accented form of itself
// costs 0.1 instead of 1. A score of at least [DefaultMatchThreshold] is a
// fuzzy match. Each distinct name is matched once per job.
//
// # Batch States
//
//	queued -> processing -> completed | failed
//
// A batch is completed when every row was attempted, even if some rows
// failed. Failed means the batch as a whole could not run: the catalog or
// client directory could not be read, storage went away, or the batch ran
// out of time. Counters and progress change together, so readers never see
// a torn snapshot.
//
// # Concurrency
//
// Batches for different jobs run independently; [BatchLimiter] caps how
// many process at once. Within a batch, rows are committed by a bounded
// errgroup. Only one non-terminal batch may exist per job.
package core
