package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/domain"
	"assetforge/internal/pipeline"
	"assetforge/internal/providers/meshy"
)

type generateFinalRequest struct {
	PrototypeID string `json:"prototype_id"`
}

// GenerateFinal submits an asynchronous final-model job and returns the
// processing record immediately. Progress arrives via polling or the
// provider webhook.
func (a *App) GenerateFinal(w http.ResponseWriter, r *http.Request) {
	var req generateFinalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.PrototypeID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prototype_id required")
		return
	}
	rec, task, err := a.Pipeline.GenerateFinalModel(r.Context(), req.PrototypeID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"asset":   a.viewOf(rec),
		"task_id": task.TaskID,
		"status":  task.Status,
	})
}

// GetFinal returns one final model record.
func (a *App) GetFinal(w http.ResponseWriter, r *http.Request) {
	a.getByType(w, r, domain.AssetTypeFinalModel)
}

// ListFinal lists final model records.
func (a *App) ListFinal(w http.ResponseWriter, r *http.Request) {
	a.listByType(w, r, domain.AssetTypeFinalModel)
}

// PollFinalTask queries the provider for the task's current state and
// reconciles it into local state before responding.
func (a *App) PollFinalTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	outcome, task, err := a.Pipeline.PollTask(r.Context(), taskID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	resp := map[string]any{
		"task_id":  task.TaskID,
		"status":   task.Status,
		"progress": task.Progress,
		"outcome":  outcome.String(),
	}
	if task.ErrorDetail != "" {
		resp["error"] = task.ErrorDetail
	}
	if rec, err := a.Pipeline.GetAsset(r.Context(), task.AssetID); err == nil {
		resp["asset"] = a.viewOf(rec)
	}
	a.json(w, http.StatusOK, resp)
}

type webhookPayload struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Progress    int                `json:"progress"`
	ModelURLs   meshy.ModelURLs    `json:"model_urls"`
	TextureURLs []meshy.TextureURL `json:"texture_urls"`
	TaskError   string             `json:"task_error"`
}

// FinalWebhook ingests provider push notifications. Unknown task ids are
// acknowledged with 200 so the provider stops redelivering; everything
// known is routed through the same reconciler as polling.
func (a *App) FinalWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if payload.ID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task id required")
		return
	}
	obs := pipeline.Observation{
		TaskID:   payload.ID,
		Status:   payload.Status,
		Progress: payload.Progress,
		Error:    payload.TaskError,
	}
	if payload.ModelURLs.OBJ != "" || payload.ModelURLs.FBX != "" || len(payload.TextureURLs) > 0 {
		obs.Result = &meshy.JobResult{ModelURLs: payload.ModelURLs, TextureURLs: payload.TextureURLs}
	}
	outcome, err := a.Pipeline.Reconcile(r.Context(), obs)
	if err != nil {
		a.Logger.Warn().Err(err).Str("task_id", payload.ID).Msg("webhook reconcile failed")
	}
	switch outcome {
	case pipeline.OutcomeIgnored:
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		a.json(w, http.StatusOK, map[string]string{"status": outcome.String()})
	}
}
