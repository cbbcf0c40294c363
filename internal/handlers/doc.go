// Package handlers provides HTTP request handlers for the PicFinder API.
//
// It includes handlers for:
//   - Starting indexing runs and reading their progress
//   - Full-text search over indexed pictures
//   - Indexing run history
//   - Health checks and version info
//
// The handlers are a thin caller layer over indexer.Manager, which owns the
// one-operation-per-folder contract.
package handlers
