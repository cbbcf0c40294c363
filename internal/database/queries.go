package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Upsert inserts rec keyed by path, or overwrites the derived fields of the
// existing row in place. The row id never changes on update, so the FTS
// shadow (maintained by triggers inside the same statement) stays aligned.
// Must be called within a batch transaction.
func (s *Store) Upsert(tx *sql.Tx, rec *PictureRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert", start, err) }()

	query := `
	INSERT INTO pictures (hash, path, classification, classification_confidence, object, object_confidence, OCR, ocr_confidence)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		hash = excluded.hash,
		classification = excluded.classification,
		classification_confidence = excluded.classification_confidence,
		object = excluded.object,
		object_confidence = excluded.object_confidence,
		OCR = excluded.OCR,
		ocr_confidence = excluded.ocr_confidence
	`

	_, err = tx.ExecContext(context.Background(), query,
		rec.Hash,
		rec.Path,
		rec.Classification,
		rec.ClassificationConfidence,
		rec.Object,
		rec.ObjectConfidence,
		rec.OCR,
		rec.OCRConfidence,
	)
	return err
}

// Remove deletes the row for path along with its FTS shadow entry. Removing
// an unknown path is not an error. Must be called within a batch transaction.
func (s *Store) Remove(tx *sql.Tx, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove", start, err) }()

	_, err = tx.ExecContext(context.Background(), "DELETE FROM pictures WHERE path = ?", path)
	return err
}

// FetchKnownHashes returns the full path-to-hash map of the catalog. The
// synchronizer diffs this against the filesystem to plan a run.
func (s *Store) FetchKnownHashes(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fetch_known_hashes", start, err) }()

	rows, err := s.db.QueryContext(ctx, "SELECT path, hash FROM pictures")
	if err != nil {
		return nil, fmt.Errorf("known hashes query failed: %w", err)
	}
	defer rows.Close()

	known := make(map[string]string)
	for rows.Next() {
		var path string
		var hash sql.NullString
		if err = rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("known hashes scan failed: %w", err)
		}
		known[path] = hash.String
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("known hashes rows error: %w", err)
	}
	return known, nil
}

// HashExists reports whether any row carries the given content hash,
// regardless of path.
func (s *Store) HashExists(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("hash_exists", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pictures WHERE hash = ?)", hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("hash lookup failed: %w", err)
	}
	return exists, nil
}

// Fetch returns the record for path, or nil when the path is not indexed.
func (s *Store) Fetch(ctx context.Context, path string) (*PictureRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fetch", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT id, hash, path, classification, classification_confidence, object, object_confidence, OCR, ocr_confidence, created_at
	FROM pictures WHERE path = ?
	`

	rec, scanErr := scanRecord(s.db.QueryRowContext(ctx, query, path))
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		err = scanErr
		return nil, fmt.Errorf("fetch failed: %w", scanErr)
	}
	return rec, nil
}

// Search runs matchQuery against the full-text shadow and returns matching
// records, most relevant first (FTS5 bm25 rank). matchQuery must already be
// in FTS5 match syntax; the query engine owns that translation.
func (s *Store) Search(ctx context.Context, matchQuery string) ([]SearchResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search", start, err) }()

	query := `
	SELECT p.id, p.hash, p.path, p.classification, p.classification_confidence, p.object, p.object_confidence, p.OCR, p.ocr_confidence, p.created_at
	FROM pictures p
	INNER JOIN pictures_fts fts ON p.id = fts.rowid
	WHERE pictures_fts MATCH ?
	ORDER BY rank
	`

	rows, err := s.db.QueryContext(ctx, query, matchQuery)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("search scan failed: %w", scanErr)
		}
		results = append(results, SearchResult{PictureRecord: *rec})
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("search rows error: %w", err)
	}
	return results, nil
}

// AppendHistory inserts one run-log entry. The history is audit data: the
// pipeline logs a failure here but never fails the run over it.
func (s *Store) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("append_history", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO history (classification_model, classification_threshold, object_detection_model, object_detection_dataset, object_detection_confidence, object_detection_iou, OCR_model, full_update)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ClassificationModel,
		entry.ClassificationThreshold,
		entry.DetectionModel,
		entry.DetectionDatasets,
		entry.DetectionConfidence,
		entry.DetectionIoU,
		entry.OCRModel,
		entry.FullUpdate,
	)
	if err != nil {
		return fmt.Errorf("history insert failed: %w", err)
	}
	return nil
}

// History returns the run log newest first. The first entry carries the
// settings of the most recent run.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("history", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT classification_model, classification_threshold, object_detection_model, object_detection_dataset, object_detection_confidence, object_detection_iou, OCR_model, full_update, indexed_at
	FROM history ORDER BY id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var indexedAt int64
		if err = rows.Scan(
			&entry.ClassificationModel,
			&entry.ClassificationThreshold,
			&entry.DetectionModel,
			&entry.DetectionDatasets,
			&entry.DetectionConfidence,
			&entry.DetectionIoU,
			&entry.OCRModel,
			&entry.FullUpdate,
			&indexedAt,
		); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		entry.IndexedAt = time.Unix(indexedAt, 0)
		entries = append(entries, entry)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("history rows error: %w", err)
	}
	return entries, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*PictureRecord, error) {
	var rec PictureRecord
	var hash, classification, object, ocr sql.NullString
	var clsConf, objConf, ocrConf sql.NullFloat64
	var createdAt int64

	err := row.Scan(
		&rec.ID, &hash, &rec.Path,
		&classification, &clsConf,
		&object, &objConf,
		&ocr, &ocrConf,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Hash = hash.String
	rec.Classification = classification.String
	rec.ClassificationConfidence = clsConf.Float64
	rec.Object = object.String
	rec.ObjectConfidence = objConf.Float64
	rec.OCR = ocr.String
	rec.OCRConfidence = ocrConf.Float64
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}
