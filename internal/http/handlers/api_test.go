package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"assetforge/internal/adapter/repo"
	httphandlers "assetforge/internal/http/handlers"
	"assetforge/internal/http/httpapi"
	"assetforge/internal/pipeline"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *repo.MemoryStore) {
	t.Helper()
	mem := repo.NewMemoryStore()
	fs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc := pipeline.NewService(pipeline.Deps{
		Assets: mem.Assets(),
		Tasks:  mem.Tasks(),
		Store:  fs,
		Images: imgprov.NewProceduralGenerator(),
		Mesher: mesh.NewProceduralMesher(),
		Logger: zerolog.Nop(),
	})
	app := httphandlers.NewApp(svc, fs, zerolog.Nop())
	router := httpapi.NewRouter(app, httpapi.Options{Logger: zerolog.Nop()})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mem
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGenerate2DFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a red sword"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Type   string `json:"type"`
	}
	decode(t, resp, &created)
	if created.Status != "completed" || created.Type != "image_2d" {
		t.Fatalf("created = %+v", created)
	}

	get, err := http.Get(srv.URL + "/generate/2d/" + created.ID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", get.StatusCode)
	}
}

func TestGenerate2DEmptyPrompt(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "  "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

type recordingGenerator struct {
	inner imgprov.Generator
	last  imgprov.Request
}

func (g *recordingGenerator) Generate(ctx context.Context, req imgprov.Request) (*imgprov.Result, error) {
	g.last = req
	return g.inner.Generate(ctx, req)
}

func TestGenerate2DRefinementNotesField(t *testing.T) {
	gen := &recordingGenerator{inner: imgprov.NewProceduralGenerator()}
	mem := repo.NewMemoryStore()
	fs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	svc := pipeline.NewService(pipeline.Deps{
		Assets: mem.Assets(),
		Tasks:  mem.Tasks(),
		Store:  fs,
		Images: gen,
		Mesher: mesh.NewProceduralMesher(),
		Logger: zerolog.Nop(),
	})
	app := httphandlers.NewApp(svc, fs, zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewRouter(app, httpapi.Options{Logger: zerolog.Nop()}))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{
		"prompt":           "a red sword",
		"refinement_notes": "warmer lighting",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if gen.last.RefinementNotes != "warmer lighting" {
		t.Fatalf("refinement notes = %q, want %q", gen.last.RefinementNotes, "warmer lighting")
	}
}

func TestGalleryNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/gallery/missing-id")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGeneratePrototypeDuplicateConflict(t *testing.T) {
	srv, mem := newTestServer(t)
	ctx := context.Background()

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a blue shield"})
	var img struct {
		ID string `json:"id"`
	}
	decode(t, resp, &img)

	resp = postJSON(t, srv.URL+"/generate/prototype", map[string]string{"image_id": img.ID})
	var proto struct {
		ID string `json:"id"`
	}
	decode(t, resp, &proto)

	// Force the finished prototype back to processing to simulate an
	// in-flight conversion, then resubmit.
	rec, err := mem.Assets().GetByID(ctx, proto.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	stuck := *rec
	stuck.ID = "stuck-proto"
	stuck.Status = "processing"
	if err := mem.Assets().Create(ctx, &stuck); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp = postJSON(t, srv.URL+"/generate/prototype", map[string]string{"image_id": img.ID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestFinalWebhookUnknownTaskAcked(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/final/webhook", map[string]any{
		"id":       "never-seen",
		"status":   "SUCCEEDED",
		"progress": 100,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ignored" {
		t.Fatalf("body = %v, want ignored ack", body)
	}
}

func TestFinalWebhookRejectsMissingID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/generate/final/webhook", map[string]any{"status": "SUCCEEDED"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateFinalWithoutProvider(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/generate/final", map[string]string{"prototype_id": "whatever"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestRefineHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a red sword"})
	var root struct {
		ID string `json:"id"`
	}
	decode(t, resp, &root)

	resp = postJSON(t, srv.URL+"/refine/2d", map[string]string{"image_id": root.ID, "refinement": "glowing edge"})
	var refined struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
	}
	decode(t, resp, &refined)

	hist, err := http.Get(srv.URL + "/refine/2d/" + refined.ID + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	var lineage struct {
		RootID       string `json:"root_id"`
		VersionCount int    `json:"version_count"`
	}
	decode(t, hist, &lineage)
	if lineage.RootID != root.ID {
		t.Fatalf("root = %q, want %q", lineage.RootID, root.ID)
	}
	if lineage.VersionCount != 2 {
		t.Fatalf("version count = %d, want 2", lineage.VersionCount)
	}
}

func TestRefineBatchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a red sword"})
	var root struct {
		ID string `json:"id"`
	}
	decode(t, resp, &root)

	resp = postJSON(t, srv.URL+"/refine/2d/batch", map[string]any{
		"image_id":         root.ID,
		"refinement_texts": []string{"glowing edge", "darker steel"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var batch struct {
		Successful      []struct{ ID string } `json:"successful"`
		Failed          []any                 `json:"failed"`
		TotalRequested  int                   `json:"total_requested"`
		TotalSuccessful int                   `json:"total_successful"`
	}
	decode(t, resp, &batch)
	if batch.TotalRequested != 2 || batch.TotalSuccessful != 2 {
		t.Fatalf("requested/successful = %d/%d, want 2/2", batch.TotalRequested, batch.TotalSuccessful)
	}
	if len(batch.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", batch.Failed)
	}

	hist, err := http.Get(srv.URL + "/refine/2d/" + root.ID + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	var lineage struct {
		VersionCount int `json:"version_count"`
	}
	decode(t, hist, &lineage)
	if lineage.VersionCount != 3 {
		t.Fatalf("version count = %d, want 3", lineage.VersionCount)
	}
}

func TestRefineBatchRejectsTooManyVariants(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a red sword"})
	var root struct {
		ID string `json:"id"`
	}
	decode(t, resp, &root)

	resp = postJSON(t, srv.URL+"/refine/2d/batch", map[string]any{
		"image_id":         root.ID,
		"refinement_texts": []string{"a", "b", "c", "d", "e", "f"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRefineBatchCollectsPerVariantFailures(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": "a red sword"})
	var root struct {
		ID string `json:"id"`
	}
	decode(t, resp, &root)

	resp = postJSON(t, srv.URL+"/refine/2d/batch", map[string]any{
		"image_id":         root.ID,
		"refinement_texts": []string{"glowing edge", "   "},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var batch struct {
		Failed []struct {
			RefinementText string `json:"refinement_text"`
			Error          string `json:"error"`
		} `json:"failed"`
		TotalSuccessful int `json:"total_successful"`
	}
	decode(t, resp, &batch)
	if batch.TotalSuccessful != 1 {
		t.Fatalf("successful = %d, want 1", batch.TotalSuccessful)
	}
	if len(batch.Failed) != 1 || batch.Failed[0].Error == "" {
		t.Fatalf("failures = %+v, want one with an error", batch.Failed)
	}
}

func TestGalleryStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, prompt := range []string{"a red sword", "a blue shield"} {
		resp := postJSON(t, srv.URL+"/generate/2d", map[string]string{"prompt": prompt})
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/gallery/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	var stats struct {
		Total  int            `json:"total"`
		ByType map[string]int `json:"by_type"`
	}
	decode(t, resp, &stats)
	if stats.Total != 2 {
		t.Fatalf("total = %d, want 2", stats.Total)
	}
	if stats.ByType["image_2d"] != 2 {
		t.Fatalf("by_type = %v", stats.ByType)
	}
}
