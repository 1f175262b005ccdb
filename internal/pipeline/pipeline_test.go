package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"assetforge/internal/adapter/repo"
	"assetforge/internal/domain"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/providers/meshy"
	"assetforge/internal/storage"
)

type fakeImages struct {
	err   error
	calls int
}

func (f *fakeImages) Generate(ctx context.Context, req imgprov.Request) (*imgprov.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &imgprov.Result{
		Data:     []byte("png-bytes"),
		Filename: imgprov.ArtifactFilename("concept", "png"),
	}, nil
}

type fakeMesher struct {
	err error
}

func (f *fakeMesher) Generate(ctx context.Context, req mesh.Request) (*mesh.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &mesh.Result{
		OBJData:     []byte("obj-bytes"),
		OBJFilename: imgprov.ArtifactFilename("prototype", "obj"),
		GIFData:     []byte("gif-bytes"),
		GIFFilename: imgprov.ArtifactFilename("turntable", "gif"),
	}, nil
}

type fakeJobs struct {
	mu        sync.Mutex
	createErr error
	status    *meshy.JobStatus
	statusErr error
	fetchErr  error
	created   int
	fetched   int
}

func (f *fakeJobs) CreateJob(ctx context.Context, imageURL, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return fmt.Sprintf("task-%d", f.created), nil
}

func (f *fakeJobs) JobStatus(ctx context.Context, taskID string) (*meshy.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeJobs) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.fetched++
	return []byte("artifact:" + url), nil
}

type env struct {
	svc    *Service
	store  *repo.MemoryStore
	images *fakeImages
	mesher *fakeMesher
	jobs   *fakeJobs
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := repo.NewMemoryStore()
	fs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	images := &fakeImages{}
	mesher := &fakeMesher{}
	jobs := &fakeJobs{}
	svc := NewService(Deps{
		Assets: mem.Assets(),
		Tasks:  mem.Tasks(),
		Store:  fs,
		Images: images,
		Mesher: mesher,
		Jobs:   jobs,
		Logger: zerolog.Nop(),
	})
	return &env{svc: svc, store: mem, images: images, mesher: mesher, jobs: jobs}
}

// seedFinal walks a full lineage to a processing final model with a
// registered external task and returns the asset and task ids.
func seedFinal(t *testing.T, e *env) (assetID, taskID string) {
	t.Helper()
	ctx := context.Background()
	img, err := e.svc.GenerateConcept(ctx, "a red sword", "")
	if err != nil {
		t.Fatalf("GenerateConcept: %v", err)
	}
	if err := e.store.Assets().SetSourceImageURL(ctx, img.ID, "https://cdn.example.com/sword.png"); err != nil {
		t.Fatalf("SetSourceImageURL: %v", err)
	}
	proto, err := e.svc.GeneratePrototype(ctx, img.ID)
	if err != nil {
		t.Fatalf("GeneratePrototype: %v", err)
	}
	final, task, err := e.svc.GenerateFinalModel(ctx, proto.ID)
	if err != nil {
		t.Fatalf("GenerateFinalModel: %v", err)
	}
	if final.Status != domain.AssetStatusProcessing {
		t.Fatalf("final status = %s, want processing", final.Status)
	}
	return final.ID, task.TaskID
}

func succeededObservation(taskID string) Observation {
	return Observation{
		TaskID:   taskID,
		Status:   "SUCCEEDED",
		Progress: 100,
		Result: &meshy.JobResult{
			ModelURLs:   meshy.ModelURLs{OBJ: "https://cdn.example.com/m.obj", FBX: "https://cdn.example.com/m.fbx"},
			TextureURLs: []meshy.TextureURL{{BaseColor: "https://cdn.example.com/t.png"}},
		},
	}
}
