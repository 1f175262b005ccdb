package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"assetforge/internal/domain"
)

// MemoryStore backs the repository interfaces with in-process maps. It is
// used by the tests and by the API when no DATABASE_URL is configured.
// All mutations happen under one mutex, so every update other callers can
// observe is a single atomic step, matching the single-row update
// semantics of the PostgreSQL implementation.
type MemoryStore struct {
	mu     sync.Mutex
	assets map[string]*domain.AssetRecord
	tasks  map[string]*domain.ExternalTask
	seq    int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]*domain.AssetRecord),
		tasks:  make(map[string]*domain.ExternalTask),
	}
}

// Assets returns the asset repository view of the store.
func (s *MemoryStore) Assets() domain.AssetRepository { return (*memoryAssets)(s) }

// Tasks returns the task repository view of the store.
func (s *MemoryStore) Tasks() domain.TaskRepository { return (*memoryTasks)(s) }

// now yields strictly increasing timestamps so creation-time ordering is
// stable even when records are created within the same clock tick.
func (s *MemoryStore) now() time.Time {
	s.seq++
	return time.Now().Add(time.Duration(s.seq) * time.Microsecond)
}

type memoryAssets MemoryStore

func (m *memoryAssets) Create(ctx context.Context, asset *domain.AssetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := (*MemoryStore)(m).now()
	asset.CreatedAt = ts
	asset.UpdatedAt = ts
	cp := *asset
	m.assets[asset.ID] = &cp
	return nil
}

func (m *memoryAssets) GetByID(ctx context.Context, id string) (*domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryAssets) List(ctx context.Context, filter domain.AssetFilter, limit, offset int) ([]domain.AssetRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.AssetRecord
	for _, a := range m.assets {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *memoryAssets) ListChildren(ctx context.Context, parentID string) ([]domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var children []domain.AssetRecord
	for _, a := range m.assets {
		if a.ParentID == parentID {
			children = append(children, *a)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].CreatedAt.Before(children[j].CreatedAt) })
	return children, nil
}

func (m *memoryAssets) ActiveChild(ctx context.Context, parentID string, typ domain.AssetType) (*domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *domain.AssetRecord
	for _, a := range m.assets {
		if a.ParentID != parentID || a.Type != typ || a.Status.Terminal() {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) {
			found = a
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memoryAssets) CompleteAsset(ctx context.Context, id string, artifacts domain.ArtifactPaths) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok || a.Status.Terminal() {
		return false, nil
	}
	a.Status = domain.AssetStatusCompleted
	if artifacts.ImagePath != "" {
		a.ImagePath = artifacts.ImagePath
	}
	if artifacts.GifPath != "" {
		a.GifPath = artifacts.GifPath
	}
	if artifacts.ObjPath != "" {
		a.ObjPath = artifacts.ObjPath
	}
	if artifacts.FbxPath != "" {
		a.FbxPath = artifacts.FbxPath
	}
	if artifacts.TexturePath != "" {
		a.TexturePath = artifacts.TexturePath
	}
	a.UpdatedAt = (*MemoryStore)(m).now()
	return true, nil
}

func (m *memoryAssets) FailAsset(ctx context.Context, id string, detail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok || a.Status.Terminal() {
		return false, nil
	}
	a.Status = domain.AssetStatusFailed
	a.ErrorMessage = detail
	a.UpdatedAt = (*MemoryStore)(m).now()
	return true, nil
}

func (m *memoryAssets) SetExternalTaskID(ctx context.Context, id, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.ExternalTaskID = taskID
	a.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryAssets) SetSourceImageURL(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.SourceImageURL = url
	a.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryAssets) Rename(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Name = name
	a.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryAssets) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.assets, id)
	for taskID, t := range m.tasks {
		if t.AssetID == id {
			delete(m.tasks, taskID)
		}
	}
	return nil
}

type memoryTasks MemoryStore

func (m *memoryTasks) Create(ctx context.Context, task *domain.ExternalTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := (*MemoryStore)(m).now()
	task.CreatedAt = ts
	task.UpdatedAt = ts
	cp := *task
	m.tasks[task.TaskID] = &cp
	return nil
}

func (m *memoryTasks) GetByTaskID(ctx context.Context, taskID string) (*domain.ExternalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTasks) RecordProgress(ctx context.Context, taskID, status string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	if progress > t.Progress {
		t.Progress = progress
	}
	t.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryTasks) RecordResult(ctx context.Context, taskID, status, resultRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.Progress = 100
	t.ResultRef = resultRef
	t.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryTasks) RecordFailure(ctx context.Context, taskID, status, errorDetail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.ErrorDetail = errorDetail
	t.UpdatedAt = (*MemoryStore)(m).now()
	return nil
}

func (m *memoryTasks) ListUnfinished(ctx context.Context, limit int) ([]domain.ExternalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tasks []domain.ExternalTask
	for _, t := range m.tasks {
		a, ok := m.assets[t.AssetID]
		if !ok || a.Status.Terminal() {
			continue
		}
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	if limit > 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

var (
	_ domain.AssetRepository = (*memoryAssets)(nil)
	_ domain.TaskRepository  = (*memoryTasks)(nil)
)
