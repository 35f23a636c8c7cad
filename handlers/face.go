package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mkardel/photoscope/coordinator"
	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/repository"
)

// FaceHandler exposes face listing and tagging.
type FaceHandler struct {
	Coord *coordinator.Coordinator
}

func (fh *FaceHandler) ListFacesByImage(w http.ResponseWriter, r *http.Request) {
	imagePath := r.URL.Query().Get("path")
	if imagePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required query parameter: path"})
		return
	}

	faces, err := fh.Coord.ListFaces(imagePath)
	if err != nil {
		log.Printf("Error listing faces for %s: %v", imagePath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list faces"})
		return
	}
	writeJSON(w, http.StatusOK, faces)
}

// TagFace names an existing detected face, identified by its exact box.
// A box that was never detected is a 404, never an insert.
func (fh *FaceHandler) TagFace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImagePath string `json:"image_path"`
		Top       int    `json:"top"`
		Right     int    `json:"right"`
		Bottom    int    `json:"bottom"`
		Left      int    `json:"left"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.ImagePath == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields (image_path, name)"})
		return
	}
	if req.Top >= req.Bottom || req.Left >= req.Right {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid bounding box coordinates"})
		return
	}

	box := media.Box{Top: req.Top, Right: req.Right, Bottom: req.Bottom, Left: req.Left}
	if err := fh.Coord.TagFace(req.ImagePath, box, req.Name); err != nil {
		if errors.Is(err, repository.ErrFaceNotFound) {
			WriteAPIError(w, http.StatusNotFound, "face_not_found", "No detected face matches the given box")
			return
		}
		log.Printf("Error tagging face on %s: %v", req.ImagePath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to tag face"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "tagged"})
}

// FaceAt resolves a pointer position to the face box under it, if any.
func (fh *FaceHandler) FaceAt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImagePath string `json:"image_path"`
		X         int    `json:"x"`
		Y         int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.ImagePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: image_path"})
		return
	}

	box, found, err := fh.Coord.FaceAt(req.ImagePath, req.X, req.Y)
	if err != nil {
		log.Printf("Error resolving face at (%d,%d) on %s: %v", req.X, req.Y, req.ImagePath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to resolve face"})
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]interface{}{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"found": true, "box": box})
}
