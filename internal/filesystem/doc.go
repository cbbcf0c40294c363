// Package filesystem provides file operations with retry logic for NFS.
//
// Picture libraries commonly live on NAS mounts; under load those return
// transient ESTALE (stale file handle) errors that succeed on retry. The
// helpers here retry only that error class, with exponential backoff, and
// record retry metrics.
package filesystem
