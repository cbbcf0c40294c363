package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"picfinder/internal/database"
	"picfinder/internal/filesystem"
	"picfinder/internal/fingerprint"
	"picfinder/internal/imagetypes"
	"picfinder/internal/logging"
)

// Reason records why a file was scheduled for processing.
type Reason string

const (
	// ReasonNew marks a path not present in the catalog.
	ReasonNew Reason = "new"
	// ReasonChanged marks a path whose content hash no longer matches the
	// catalog.
	ReasonChanged Reason = "changed"
	// ReasonForced marks a path scheduled by a full rebuild regardless of
	// its hash.
	ReasonForced Reason = "forced"
)

// WorkItem is one file queued for (re)processing during one run.
type WorkItem struct {
	// AbsPath locates the file on disk.
	AbsPath string
	// RelPath is the catalog key: relative to the indexed root, POSIX
	// separators.
	RelPath string
	Reason  Reason
}

// Plan is the output of one synchronization pass: work in traversal order,
// paths to delete, and the number of unchanged files skipped.
type Plan struct {
	Items     []WorkItem
	Deletions []string
	Skipped   int
}

// Synchronizer diffs a root folder against the catalog. Not safe for
// concurrent use; the Manager runs one plan at a time per folder.
type Synchronizer struct {
	root  string
	retry filesystem.RetryConfig

	// lastSkipped counts unchanged files in the most recent Scan.
	lastSkipped int
}

// NewSynchronizer creates a Synchronizer for the given root folder.
func NewSynchronizer(root string) *Synchronizer {
	return &Synchronizer{root: root, retry: filesystem.DefaultRetryConfig()}
}

// Plan computes the work set for one indexing run.
//
// Files recorded in the catalog but missing on disk go into Deletions.
// Every supported image under the root is then classified as new, changed
// (current hash differs from the recorded one) or unchanged; unchanged files
// produce no work unless forceFull is set. Failure to enumerate the
// filesystem or read the catalog is fatal; a single unreadable file is
// logged and skipped.
func (s *Synchronizer) Plan(ctx context.Context, store *database.Store, forceFull bool) (*Plan, error) {
	known, err := store.FetchKnownHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hashes: %w", err)
	}

	plan := &Plan{}

	for relPath := range known {
		if _, statErr := filesystem.StatWithRetry(filepath.Join(s.root, filepath.FromSlash(relPath)), s.retry); os.IsNotExist(statErr) {
			plan.Deletions = append(plan.Deletions, relPath)
		}
	}

	for item, scanErr := range s.Scan(known, forceFull) {
		if scanErr != nil {
			return nil, fmt.Errorf("folder scan failed: %w", scanErr)
		}
		plan.Items = append(plan.Items, item)
	}
	plan.Skipped = s.lastSkipped

	logging.Info("Plan for %s: %d to process, %d to delete, %d unchanged",
		s.root, len(plan.Items), len(plan.Deletions), plan.Skipped)

	return plan, nil
}

// Scan lazily walks the root in filesystem traversal order, yielding one
// WorkItem per supported image that needs processing. Hashes are computed
// on demand during iteration, never ahead of it, so breaking out of the
// loop early does no wasted I/O. A non-nil error ends the sequence and
// invalidates it.
func (s *Synchronizer) Scan(known map[string]string, forceFull bool) iter.Seq2[WorkItem, error] {
	s.lastSkipped = 0

	return func(yield func(WorkItem, error) bool) {
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if path == s.root {
					return fmt.Errorf("cannot enumerate %s: %w", s.root, walkErr)
				}
				logging.Warn("Skipping inaccessible path %s: %v", path, walkErr)
				return nil
			}

			if d.IsDir() {
				if path != s.root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || !imagetypes.IsSupported(d.Name()) {
				return nil
			}

			relPath, relErr := filepath.Rel(s.root, path)
			if relErr != nil {
				logging.Warn("Skipping %s: %v", path, relErr)
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			item := WorkItem{AbsPath: path, RelPath: relPath}

			switch {
			case forceFull:
				item.Reason = ReasonForced
			default:
				knownHash, indexed := known[relPath]
				if !indexed {
					item.Reason = ReasonNew
					break
				}
				data, readErr := filesystem.ReadFileWithRetry(path, s.retry)
				if readErr != nil {
					logging.Warn("Skipping unreadable file %s: %v", path, readErr)
					return nil
				}
				if fingerprint.Sum(data) == knownHash {
					s.lastSkipped++
					return nil
				}
				item.Reason = ReasonChanged
			}

			if !yield(item, nil) {
				return fs.SkipAll
			}
			return nil
		})

		if err != nil {
			yield(WorkItem{}, err)
		}
	}
}
