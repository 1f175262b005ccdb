package domain

import "time"

// AssetType enumerates the pipeline tiers an artifact can belong to.
type AssetType string

const (
	AssetTypeImage2D    AssetType = "image_2d"
	AssetTypePrototype  AssetType = "prototype"
	AssetTypeFinalModel AssetType = "final_model"
)

// AssetStatus enumerates asset lifecycle states.
type AssetStatus string

const (
	AssetStatusPending    AssetStatus = "pending"
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusCompleted  AssetStatus = "completed"
	AssetStatusFailed     AssetStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s AssetStatus) Terminal() bool {
	return s == AssetStatusCompleted || s == AssetStatusFailed
}

// AssetRecord represents one generated artifact at any tier of the
// pipeline. ParentID links a record to the asset it was refined or
// converted from; the lineage graph is a forest, never a DAG.
type AssetRecord struct {
	ID     string
	Name   string
	Prompt string
	Type   AssetType
	Status AssetStatus

	// Artifact filenames, resolved against the tier root by storage.
	ImagePath   string
	GifPath     string
	ObjPath     string
	FbxPath     string
	TexturePath string

	ParentID       string
	SourceImageURL string
	ExternalTaskID string
	ErrorMessage   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArtifactPaths groups the filenames committed when an asset completes.
type ArtifactPaths struct {
	ImagePath   string
	GifPath     string
	ObjPath     string
	FbxPath     string
	TexturePath string
}

// Filenames returns the non-empty paths in a stable order.
func (p ArtifactPaths) Filenames() []string {
	var out []string
	for _, f := range []string{p.ImagePath, p.GifPath, p.ObjPath, p.FbxPath, p.TexturePath} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// AssetFilter narrows list queries.
type AssetFilter struct {
	Type   AssetType
	Status AssetStatus
}
