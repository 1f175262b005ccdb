// Package handlers exposes the pipeline over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	"assetforge/internal/pipeline"
	"assetforge/internal/storage"
)

type App struct {
	Pipeline *pipeline.Service
	Store    storage.Store
	Logger   zerolog.Logger
}

func NewApp(svc *pipeline.Service, store storage.Store, logger zerolog.Logger) *App {
	return &App{Pipeline: svc, Store: store, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"code": kind, "message": message})
}

// domainError maps pipeline errors onto HTTP responses. Anything not
// matching a known sentinel is a 500 with the detail kept out of the
// body.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrPrecondition):
		a.error(w, http.StatusBadRequest, "precondition_failed", err.Error())
	case errors.Is(err, domain.ErrDuplicateOperation):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "provider_failure", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// assetView is the wire shape of a record, with artifact filenames
// expanded into public URLs.
type assetView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Prompt         string `json:"prompt"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	ImageURL       string `json:"image_url,omitempty"`
	GifURL         string `json:"gif_url,omitempty"`
	ObjURL         string `json:"obj_url,omitempty"`
	FbxURL         string `json:"fbx_url,omitempty"`
	TextureURL     string `json:"texture_url,omitempty"`
	ParentID       string `json:"parent_id,omitempty"`
	SourceImageURL string `json:"source_image_url,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func (a *App) viewOf(rec *domain.AssetRecord) assetView {
	v := assetView{
		ID:             rec.ID,
		Name:           rec.Name,
		Prompt:         rec.Prompt,
		Type:           string(rec.Type),
		Status:         string(rec.Status),
		ParentID:       rec.ParentID,
		SourceImageURL: rec.SourceImageURL,
		TaskID:         rec.ExternalTaskID,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rec.ImagePath != "" {
		v.ImageURL = a.Store.URLFor(storage.TierImages, rec.ImagePath)
	}
	if rec.GifPath != "" {
		v.GifURL = a.Store.URLFor(storage.TierPrototypes, rec.GifPath)
	}
	if rec.ObjPath != "" {
		tier := storage.TierFinal
		if rec.Type == domain.AssetTypePrototype {
			tier = storage.TierPrototypes
		}
		v.ObjURL = a.Store.URLFor(tier, rec.ObjPath)
	}
	if rec.FbxPath != "" {
		v.FbxURL = a.Store.URLFor(storage.TierFinal, rec.FbxPath)
	}
	if rec.TexturePath != "" {
		v.TextureURL = a.Store.URLFor(storage.TierFinal, rec.TexturePath)
	}
	return v
}

func (a *App) viewsOf(recs []domain.AssetRecord) []assetView {
	views := make([]assetView, 0, len(recs))
	for i := range recs {
		views = append(views, a.viewOf(&recs[i]))
	}
	return views
}
