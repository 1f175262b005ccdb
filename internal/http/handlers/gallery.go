package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/domain"
)

// ListGallery lists records across all tiers, optionally filtered by
// type and status.
func (a *App) ListGallery(w http.ResponseWriter, r *http.Request) {
	filter := domain.AssetFilter{
		Type:   domain.AssetType(r.URL.Query().Get("type")),
		Status: domain.AssetStatus(r.URL.Query().Get("status")),
	}
	limit, offset := pageParams(r)
	items, total, err := a.Pipeline.ListAssets(r.Context(), filter, limit, offset)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": a.viewsOf(items), "total": total})
}

// GetGalleryItem returns one record of any type.
func (a *App) GetGalleryItem(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Pipeline.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.viewOf(rec))
}

type saveGalleryRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveGalleryItem renames a record.
func (a *App) SaveGalleryItem(w http.ResponseWriter, r *http.Request) {
	var req saveGalleryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	rec, err := a.Pipeline.RenameAsset(r.Context(), req.ID, req.Name)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.viewOf(rec))
}

// DeleteGalleryItem removes a record and its stored artifacts.
func (a *App) DeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	if err := a.Pipeline.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GalleryStats returns aggregate counts by type and status.
func (a *App) GalleryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Pipeline.GalleryStats(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}
