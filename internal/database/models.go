package database

import "time"

// PictureRecord is one row of the pictures table: a single indexed file and
// the aggregated output of each inference stage. A record with empty text
// and zero confidence in every stage is valid; it marks the path as
// processed when all stages were disabled or found nothing.
type PictureRecord struct {
	ID                       int64     `json:"id"`
	Hash                     string    `json:"hash"`
	Path                     string    `json:"path"`
	Classification           string    `json:"classification"`
	ClassificationConfidence float64   `json:"classificationConfidence"`
	Object                   string    `json:"object"`
	ObjectConfidence         float64   `json:"objectConfidence"`
	OCR                      string    `json:"ocr"`
	OCRConfidence            float64   `json:"ocrConfidence"`
	CreatedAt                time.Time `json:"createdAt"`
}

// SearchResult is a PictureRecord matched through the full-text shadow,
// returned in relevance order.
type SearchResult struct {
	PictureRecord
}

// HistoryEntry is one row of the append-only indexing run log. The latest
// entry doubles as the settings to preselect for the next run.
type HistoryEntry struct {
	ClassificationModel     string    `json:"classificationModel"`
	ClassificationThreshold float64   `json:"classificationThreshold"`
	DetectionModel          string    `json:"objectDetectionModel"`
	DetectionDatasets       string    `json:"objectDetectionDatasets"`
	DetectionConfidence     float64   `json:"objectDetectionConfidence"`
	DetectionIoU            float64   `json:"objectDetectionIoU"`
	OCRModel                string    `json:"ocrModel"`
	FullUpdate              bool      `json:"fullUpdate"`
	IndexedAt               time.Time `json:"indexedAt"`
}
