package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"assetforge/internal/domain"
)

type generatePrototypeRequest struct {
	ImageID string `json:"image_id"`
}

// GeneratePrototype converts a concept image into a rough 3D mesh with a
// turntable preview. The conversion is synchronous and not retried; a
// failed record stays failed and callers resubmit.
func (a *App) GeneratePrototype(w http.ResponseWriter, r *http.Request) {
	var req generatePrototypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_id required")
		return
	}
	rec, err := a.Pipeline.GeneratePrototype(r.Context(), req.ImageID)
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

// GetPrototype returns one prototype record.
func (a *App) GetPrototype(w http.ResponseWriter, r *http.Request) {
	a.getByType(w, r, domain.AssetTypePrototype)
}

// ListPrototypes lists prototype records.
func (a *App) ListPrototypes(w http.ResponseWriter, r *http.Request) {
	a.listByType(w, r, domain.AssetTypePrototype)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
