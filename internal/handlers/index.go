package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"picfinder/internal/indexer"
	"picfinder/internal/vision"
)

// IndexRequest is the body of POST /api/index. Model identifiers use the
// registry names; "None" disables a stage.
type IndexRequest struct {
	Root                    string   `json:"root,omitempty"`
	ClassificationModel     string   `json:"classificationModel"`
	ClassificationThreshold float64  `json:"classificationThreshold"`
	DetectionModel          string   `json:"objectDetectionModel"`
	DetectionDatasets       []string `json:"objectDetectionDatasets"`
	DetectionConfidence     float64  `json:"objectDetectionConfidence"`
	DetectionIoU            float64  `json:"objectDetectionIoU"`
	OCRModel                string   `json:"ocrModel"`
	FullUpdate              bool     `json:"fullUpdate"`
	BatchSize               int      `json:"batchSize,omitempty"`
}

// StartIndex kicks off an indexing run in the background. It returns 202
// with the run ID, 409 while the folder is busy, or 400 for configuration
// errors.
func (h *Handlers) StartIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cfg := vision.IndexConfig{
		Classification:          vision.ClassificationModel(req.ClassificationModel),
		ClassificationThreshold: req.ClassificationThreshold,
		Detection:               vision.DetectionModel(req.DetectionModel),
		DetectionConfidence:     req.DetectionConfidence,
		DetectionIoU:            req.DetectionIoU,
		OCR:                     vision.OCRModel(req.OCRModel),
		FullRebuild:             req.FullUpdate,
		BatchSize:               req.BatchSize,
	}
	for _, dataset := range req.DetectionDatasets {
		cfg.DetectionDatasets = append(cfg.DetectionDatasets, vision.Dataset(dataset))
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = h.defaultBatchSize
	}

	runID, err := h.manager.StartIndex(r.Context(), h.root(req.Root), cfg)
	if errors.Is(err, indexer.ErrBusy) {
		writeJSONError(w, "an indexing run or search is already in progress for this folder", http.StatusConflict)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"runId": runID})
}

// IndexProgress returns the advisory progress snapshot for a folder.
func (h *Handlers) IndexProgress(w http.ResponseWriter, r *http.Request) {
	progress, ok := h.manager.Progress(h.root(r.URL.Query().Get("root")))
	if !ok {
		writeJSONError(w, "no indexing run for this folder", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, progress)
}

// LastIndexRun returns the outcome of the most recently finished run.
func (h *Handlers) LastIndexRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.manager.LastRun(h.root(r.URL.Query().Get("root")))
	if summary == nil && err == nil {
		writeJSONError(w, "no finished indexing run for this folder", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{"summary": summary}
	if err != nil {
		response["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
