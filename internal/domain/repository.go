package domain

import "context"

// AssetRepository defines persistence for asset records. Terminal
// transitions are compare-and-swap operations: they apply only while the
// record is still pending/processing and report whether they won, so two
// concurrent reconcilers can never both commit a terminal state.
type AssetRepository interface {
	Create(ctx context.Context, asset *AssetRecord) error
	GetByID(ctx context.Context, id string) (*AssetRecord, error)
	List(ctx context.Context, filter AssetFilter, limit, offset int) ([]AssetRecord, int, error)
	ListChildren(ctx context.Context, parentID string) ([]AssetRecord, error)

	// ActiveChild returns the in-flight (pending/processing) child of the
	// given type under parentID, or ErrNotFound.
	ActiveChild(ctx context.Context, parentID string, typ AssetType) (*AssetRecord, error)

	CompleteAsset(ctx context.Context, id string, artifacts ArtifactPaths) (bool, error)
	FailAsset(ctx context.Context, id string, detail string) (bool, error)

	SetExternalTaskID(ctx context.Context, id, taskID string) error
	SetSourceImageURL(ctx context.Context, id, url string) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// TaskRepository defines persistence for external task trackers.
type TaskRepository interface {
	Create(ctx context.Context, task *ExternalTask) error
	GetByTaskID(ctx context.Context, taskID string) (*ExternalTask, error)

	// RecordProgress updates the provider status string and merges
	// progress monotonically: a stale value never rolls it back.
	RecordProgress(ctx context.Context, taskID, status string, progress int) error
	RecordResult(ctx context.Context, taskID, status, resultRef string) error
	RecordFailure(ctx context.Context, taskID, status, errorDetail string) error

	// ListUnfinished returns tasks whose owning asset is not yet terminal,
	// oldest first. Used by the poll worker.
	ListUnfinished(ctx context.Context, limit int) ([]ExternalTask, error)
}
