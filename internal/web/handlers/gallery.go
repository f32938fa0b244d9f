package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// GalleryHandler seeds and prunes event galleries.
type GalleryHandler struct {
	store database.GalleryWriter
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(store database.GalleryWriter) *GalleryHandler {
	return &GalleryHandler{store: store}
}

type importGalleryRequest struct {
	Entries []attendance.GalleryItem `json:"entries" validate:"required,min=1,max=10000"`
}

// Import stores descriptors for an event. Invalid entries are reported, not fatal.
func (h *GalleryHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importGalleryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, r, err)
		return
	}

	res, err := attendance.ImportGallery(r.Context(), h.store, chi.URLParam(r, "eventID"), req.Entries)
	if err != nil {
		respondKindError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Delete removes one volunteer from an event gallery.
func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID := facematch.CanonicalID(chi.URLParam(r, "eventID"))
	volunteerID := facematch.CanonicalID(chi.URLParam(r, "volunteerID"))

	if err := h.store.DeleteEntry(r.Context(), eventID, volunteerID); err != nil {
		respondKindError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
