package handlers

import (
	"net/http"

	"github.com/Anupam-Kumar2505/djsce-resources/internal/services"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
	"github.com/go-chi/chi/v5"
)

// YearsHandler serves the public catalogue listings.
type YearsHandler struct {
	resourceService *services.ResourceService
}

func NewYearsHandler(resourceService *services.ResourceService) *YearsHandler {
	return &YearsHandler{resourceService: resourceService}
}

// YearsRouter registers the public catalogue routes on the given router.
func YearsRouter(r chi.Router, resourceService *services.ResourceService) {
	handler := NewYearsHandler(resourceService)

	r.Get("/years", handler.ListYears)
	r.Get("/year/{year}", handler.ListByYear)
}

func (h *YearsHandler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.resourceService.ListYears(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list years")
		return
	}
	writeJSON(w, http.StatusOK, YearsResponse{Years: years})
}

// ListByYear returns the year's records, approved and pending partitioned.
// With approvedOnly=true only the approved sequence is returned.
func (h *YearsHandler) ListByYear(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")
	if !types.ValidYear(year) {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}

	if r.URL.Query().Get("approvedOnly") == "true" {
		approved, err := h.resourceService.ListApprovedByYear(r.Context(), year)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list files")
			return
		}
		writeJSON(w, http.StatusOK, YearListingResponse{
			Year:         year,
			Files:        approved,
			PendingFiles: []types.File{},
		})
		return
	}

	approved, pending, err := h.resourceService.ListByYear(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, YearListingResponse{
		Year:         year,
		Files:        approved,
		PendingFiles: pending,
	})
}

type YearsResponse struct {
	Years []string `json:"years"`
}

type YearListingResponse struct {
	Year         string       `json:"year"`
	Files        []types.File `json:"files"`
	PendingFiles []types.File `json:"pendingFiles"`
}
