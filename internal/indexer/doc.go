// Package indexer drives incremental indexing of a picture folder.
//
// A Synchronizer diffs the folder against the catalog to produce the minimal
// work plan (new and changed files, plus deletions for files gone from
// disk). A Pipeline drains the plan in fixed-size batches through the
// enabled inference stages and writes aggregated results back to the
// catalog. The Manager serializes runs and searches per folder, rejecting
// concurrent requests instead of queueing them.
package indexer
