// Package database implements the persistent picture catalog.
//
// Each indexed root folder owns a single SQLite file (PicFinder.db,
// colocated with the root) holding the pictures table, the append-only
// history log and a full-text search shadow (FTS5) kept in sync with the
// pictures table through insert/update/delete triggers. The store assumes a
/// single session: one write path at a time, enforced by the caller layer.
package database
