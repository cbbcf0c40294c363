package handlers

import (
	"errors"
	"net/http"

	"picfinder/internal/database"
	"picfinder/internal/indexer"
)

// SearchResponse is the body of a successful GET /api/search.
type SearchResponse struct {
	Query   string                  `json:"query"`
	Total   int                     `json:"total"`
	Results []database.SearchResult `json:"results"`
}

// Search runs a free-text query over a folder's catalog. Matches come back
// most relevant first. 409 while the folder is being indexed.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	queryText := r.URL.Query().Get("q")

	results, err := h.manager.Search(r.Context(), h.root(r.URL.Query().Get("root")), queryText)
	if errors.Is(err, indexer.ErrBusy) {
		writeJSONError(w, "folder is being indexed, try again later", http.StatusConflict)
		return
	}
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []database.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, SearchResponse{
		Query:   queryText,
		Total:   len(results),
		Results: results,
	})
}

// History returns the folder's indexing run log, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.manager.History(r.Context(), h.root(r.URL.Query().Get("root")))
	if errors.Is(err, indexer.ErrBusy) {
		writeJSONError(w, "folder is being indexed, try again later", http.StatusConflict)
		return
	}
	if err != nil {
		writeJSONError(w, "history lookup failed", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []database.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}
