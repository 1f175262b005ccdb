package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/domain"
)

type generate2DRequest struct {
	Prompt          string `json:"prompt"`
	RefinementNotes string `json:"refinement_notes,omitempty"`
}

// Generate2D creates a new tier-1 concept image. The generator chain
// guarantees a completed image for any non-empty prompt, so failures
// here are rare and surface as a failed record plus a 502.
func (a *App) Generate2D(w http.ResponseWriter, r *http.Request) {
	var req generate2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	rec, err := a.Pipeline.GenerateConcept(r.Context(), req.Prompt, req.RefinementNotes)
	if err != nil {
		if rec != nil {
			a.json(w, http.StatusBadGateway, map[string]any{
				"code":    "provider_failure",
				"message": err.Error(),
				"asset":   a.viewOf(rec),
			})
			return
		}
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.viewOf(rec))
}

// Get2D returns one concept image record.
func (a *App) Get2D(w http.ResponseWriter, r *http.Request) {
	a.getByType(w, r, domain.AssetTypeImage2D)
}

// List2D lists concept image records.
func (a *App) List2D(w http.ResponseWriter, r *http.Request) {
	a.listByType(w, r, domain.AssetTypeImage2D)
}

type refine2DRequest struct {
	ImageID    string `json:"image_id"`
	Refinement string `json:"refinement"`
}

// Refine2D creates a new concept image derived from an existing one.
func (a *App) Refine2D(w http.ResponseWriter, r *http.Request) {
	var req refine2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_id required")
		return
	}
	rec, err := a.Pipeline.RefineConcept(r.Context(), req.ImageID, req.Refinement)
	if err != nil {
		if rec != nil {
			a.json(w, http.StatusBadGateway, map[string]any{
				"code":    "provider_failure",
				"message": err.Error(),
				"asset":   a.viewOf(rec),
			})
			return
		}
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, a.viewOf(rec))
}

const maxRefineVariants = 5

type batchRefine2DRequest struct {
	ImageID         string   `json:"image_id"`
	RefinementTexts []string `json:"refinement_texts"`
}

type batchRefineFailure struct {
	RefinementText string `json:"refinement_text"`
	Error          string `json:"error"`
}

// RefineBatch2D generates several refinement variants of one image in a
// single call. Variants are independent: a failing one is collected and
// the rest still run.
func (a *App) RefineBatch2D(w http.ResponseWriter, r *http.Request) {
	var req batchRefine2DRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_id required")
		return
	}
	if len(req.RefinementTexts) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "refinement_texts required")
		return
	}
	if len(req.RefinementTexts) > maxRefineVariants {
		a.error(w, http.StatusBadRequest, "bad_request", "maximum 5 variants can be generated at once")
		return
	}

	successful := make([]assetView, 0, len(req.RefinementTexts))
	failed := make([]batchRefineFailure, 0)
	for _, text := range req.RefinementTexts {
		rec, err := a.Pipeline.RefineConcept(r.Context(), req.ImageID, text)
		if err != nil {
			failed = append(failed, batchRefineFailure{RefinementText: text, Error: err.Error()})
			continue
		}
		successful = append(successful, a.viewOf(rec))
	}
	a.json(w, http.StatusOK, map[string]any{
		"successful":       successful,
		"failed":           failed,
		"total_requested":  len(req.RefinementTexts),
		"total_successful": len(successful),
	})
}

// RefineHistory returns the full version family of a concept image.
func (a *App) RefineHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lineage, err := a.Pipeline.ResolveLineage(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"root_id":       lineage.RootID,
		"requested_id":  lineage.RequestedID,
		"version_count": lineage.VersionCount,
		"history":       a.viewsOf(lineage.History),
	})
}

func (a *App) getByType(w http.ResponseWriter, r *http.Request, typ domain.AssetType) {
	id := chi.URLParam(r, "id")
	rec, err := a.Pipeline.GetAsset(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if rec.Type != typ {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	a.json(w, http.StatusOK, a.viewOf(rec))
}

func (a *App) listByType(w http.ResponseWriter, r *http.Request, typ domain.AssetType) {
	limit, offset := pageParams(r)
	items, total, err := a.Pipeline.ListAssets(r.Context(), domain.AssetFilter{Type: typ}, limit, offset)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": a.viewsOf(items), "total": total})
}
