package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"picfinder/internal/logging"
	"picfinder/internal/metrics"
)

// DefaultFileName is the catalog file name, conventionally colocated with
// the indexed root folder.
const DefaultFileName = "PicFinder.db"

// Default timeout for quick store operations
const defaultTimeout = 5 * time.Second

// Store manages one catalog file.
type Store struct {
	db      *sql.DB
	dbPath  string
	txStart time.Time
}

// Open opens (creating if necessary) the catalog at dbPath and ensures the
// schema exists.
//
// The returned store holds exactly one connection: the catalog is
// single-writer by contract and the caller layer serializes indexing and
// search against it, so a pool would only hide contention bugs.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Debug("Opening catalog at %s", dbPath)

	// busy_timeout guards against transient "database is locked" errors
	// from a lingering WAL reader.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Main catalog table
	CREATE TABLE IF NOT EXISTS pictures (
		id INTEGER PRIMARY KEY,
		hash TEXT,
		path TEXT NOT NULL UNIQUE,
		classification TEXT,
		classification_confidence REAL,
		object TEXT,
		object_confidence REAL,
		OCR TEXT,
		ocr_confidence REAL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_pictures_hash ON pictures(hash);

	-- Append-only log of indexing runs
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY,
		classification_model TEXT,
		classification_threshold REAL,
		object_detection_model TEXT,
		object_detection_dataset TEXT,
		object_detection_confidence REAL,
		object_detection_iou REAL,
		OCR_model TEXT,
		full_update BOOLEAN,
		indexed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Full-text shadow of the searchable columns
	CREATE VIRTUAL TABLE IF NOT EXISTS pictures_fts USING fts5(
		classification,
		object,
		OCR,
		content='pictures',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS pictures_ai AFTER INSERT ON pictures BEGIN
		INSERT INTO pictures_fts(rowid, classification, object, OCR)
		VALUES (new.id, new.classification, new.object, new.OCR);
	END;

	CREATE TRIGGER IF NOT EXISTS pictures_ad AFTER DELETE ON pictures BEGIN
		INSERT INTO pictures_fts(pictures_fts, rowid, classification, object, OCR)
		VALUES ('delete', old.id, old.classification, old.object, old.OCR);
	END;

	CREATE TRIGGER IF NOT EXISTS pictures_au AFTER UPDATE ON pictures BEGIN
		INSERT INTO pictures_fts(pictures_fts, rowid, classification, object, OCR)
		VALUES ('delete', old.id, old.classification, old.object, old.OCR);
		INSERT INTO pictures_fts(rowid, classification, object, OCR)
		VALUES (new.id, new.classification, new.object, new.OCR);
	END;
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close releases the store's connection. Safe to defer on every exit path.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginBatch starts a transaction for batch writes. The caller must finish
// it with EndBatch.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	s.txStart = time.Now()

	// Transaction lifetime is owned by EndBatch, not a context timeout: a
	// batch of upserts may legitimately take minutes on slow disks.
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back when err is non-nil.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(s.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
