package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mkardel/photoscope/coordinator"
)

// LibraryHandler exposes folder scanning, listing and search.
type LibraryHandler struct {
	Coord *coordinator.Coordinator
}

// ScanFolder triggers background ingestion of a folder. Responds 202
// immediately; progress arrives over the websocket event stream.
func (lh *LibraryHandler) ScanFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path  string `json:"path"`
		Force bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: path"})
		return
	}

	runID, queued, err := lh.Coord.OpenFolder(req.Path, req.Force)
	if err != nil {
		log.Printf("Error starting scan for %s: %v", req.Path, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"queued": queued,
	})
}

// ListImages returns the stored collection under a sort key.
func (lh *LibraryHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	sortKey := r.URL.Query().Get("sort")

	images, err := lh.Coord.ListImages(sortKey)
	if err != nil {
		log.Printf("Error listing images: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list images"})
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// Search ranks stored images against a natural-language query. An empty
// query returns the full set.
func (lh *LibraryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := lh.Coord.Search(r.Context(), query)
	if err != nil {
		log.Printf("Error searching for %q: %v", query, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Search failed"})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Status reports provider readiness and the active scan for the status bar.
func (lh *LibraryHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lh.Coord.Status())
}
