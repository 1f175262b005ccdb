// Package pipeline implements the asset lifecycle engine: tier
// orchestration, lineage resolution, and reconciliation of asynchronous
// external jobs into local asset state.
package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/providers/meshy"
	"assetforge/internal/storage"
)

// Deps collects the collaborators the service is constructed with. All
// external effects (persistence, blob storage, generators, the remote
// job provider) enter through here; the service holds no other state
// besides its per-task locks.
type Deps struct {
	Assets domain.AssetRepository
	Tasks  domain.TaskRepository
	Store  storage.Store
	Images imgprov.Generator
	Mesher mesh.Generator
	Jobs   meshy.JobClient // nil when the final-model provider is not configured

	// GenerateTimeout bounds synchronous tier-1/tier-2 generator calls.
	GenerateTimeout time.Duration

	Logger zerolog.Logger
}

// Service is the pipeline core shared by the HTTP handlers and the poll
// worker.
type Service struct {
	assets     domain.AssetRepository
	tasks      domain.TaskRepository
	store      storage.Store
	images     imgprov.Generator
	mesher     mesh.Generator
	jobs       meshy.JobClient
	genTimeout time.Duration
	logger     zerolog.Logger

	taskLocks sync.Map // task id -> *sync.Mutex
}

// NewService wires the pipeline from its dependencies.
func NewService(deps Deps) *Service {
	timeout := deps.GenerateTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Service{
		assets:     deps.Assets,
		tasks:      deps.Tasks,
		store:      deps.Store,
		images:     deps.Images,
		mesher:     deps.Mesher,
		jobs:       deps.Jobs,
		genTimeout: timeout,
		logger:     deps.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// lockTask serializes reconciliation per task id within this process.
// The repository-level status guard still protects against other
// processes; the lock only prevents wasted duplicate downloads.
func (s *Service) lockTask(taskID string) func() {
	v, _ := s.taskLocks.LoadOrStore(taskID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
