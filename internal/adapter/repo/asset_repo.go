package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetforge/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

const assetColumns = `
id, name, COALESCE(prompt, ''), asset_type, status,
COALESCE(image_path, ''), COALESCE(gif_path, ''), COALESCE(obj_path, ''),
COALESCE(fbx_path, ''), COALESCE(texture_path, ''),
COALESCE(parent_id, ''), COALESCE(source_image_url, ''),
COALESCE(external_task_id, ''), COALESCE(error_message, ''),
created_at, updated_at`

func scanAsset(row pgx.Row) (*domain.AssetRecord, error) {
	var a domain.AssetRecord
	if err := row.Scan(
		&a.ID, &a.Name, &a.Prompt, &a.Type, &a.Status,
		&a.ImagePath, &a.GifPath, &a.ObjPath, &a.FbxPath, &a.TexturePath,
		&a.ParentID, &a.SourceImageURL, &a.ExternalTaskID, &a.ErrorMessage,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new asset record.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.AssetRecord) error {
	query := `
INSERT INTO assets (id, name, prompt, asset_type, status, image_path, gif_path, obj_path, fbx_path, texture_path, parent_id, source_image_url, external_task_id, error_message)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''))
RETURNING created_at, updated_at;
`
	return r.pool.QueryRow(ctx, query,
		asset.ID,
		asset.Name,
		asset.Prompt,
		asset.Type,
		asset.Status,
		asset.ImagePath,
		asset.GifPath,
		asset.ObjPath,
		asset.FbxPath,
		asset.TexturePath,
		asset.ParentID,
		asset.SourceImageURL,
		asset.ExternalTaskID,
		asset.ErrorMessage,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
}

// GetByID fetches an asset by its identifier.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.AssetRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1;`, id)
	return scanAsset(row)
}

// List returns assets matching the filter, newest first, plus the total count.
func (r *AssetRepositoryPG) List(ctx context.Context, filter domain.AssetFilter, limit, offset int) ([]domain.AssetRecord, int, error) {
	query := `
SELECT ` + assetColumns + `
FROM assets
WHERE ($1 = '' OR asset_type = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;
`
	rows, err := r.pool.Query(ctx, query, string(filter.Type), string(filter.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assets []domain.AssetRecord
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `
SELECT COUNT(*) FROM assets
WHERE ($1 = '' OR asset_type = $1)
  AND ($2 = '' OR status = $2);
`
	if err := r.pool.QueryRow(ctx, countQuery, string(filter.Type), string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// ListChildren returns direct children of parentID ordered by creation time.
func (r *AssetRepositoryPG) ListChildren(ctx context.Context, parentID string) ([]domain.AssetRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE parent_id = $1 ORDER BY created_at ASC;`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.AssetRecord
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// ActiveChild returns the in-flight child of the given type under parentID.
func (r *AssetRepositoryPG) ActiveChild(ctx context.Context, parentID string, typ domain.AssetType) (*domain.AssetRecord, error) {
	query := `
SELECT ` + assetColumns + `
FROM assets
WHERE parent_id = $1 AND asset_type = $2 AND status IN ('pending', 'processing')
ORDER BY created_at ASC
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, query, parentID, typ)
	return scanAsset(row)
}

// CompleteAsset commits artifact paths and flips the record to completed.
// The status guard makes the transition a compare-and-swap: it reports
// false when the record was already terminal.
func (r *AssetRepositoryPG) CompleteAsset(ctx context.Context, id string, artifacts domain.ArtifactPaths) (bool, error) {
	query := `
UPDATE assets
SET status = 'completed',
    image_path = COALESCE(NULLIF($2, ''), image_path),
    gif_path = COALESCE(NULLIF($3, ''), gif_path),
    obj_path = COALESCE(NULLIF($4, ''), obj_path),
    fbx_path = COALESCE(NULLIF($5, ''), fbx_path),
    texture_path = COALESCE(NULLIF($6, ''), texture_path),
    updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, id,
		artifacts.ImagePath, artifacts.GifPath, artifacts.ObjPath, artifacts.FbxPath, artifacts.TexturePath)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FailAsset flips the record to failed with the given detail.
func (r *AssetRepositoryPG) FailAsset(ctx context.Context, id string, detail string) (bool, error) {
	query := `
UPDATE assets
SET status = 'failed',
    error_message = NULLIF($2, ''),
    updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, id, detail)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetExternalTaskID attaches the provider task id to the record.
func (r *AssetRepositoryPG) SetExternalTaskID(ctx context.Context, id, taskID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE assets SET external_task_id = $2, updated_at = NOW() WHERE id = $1;`, id, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSourceImageURL attaches the provider-hosted image reference.
func (r *AssetRepositoryPG) SetSourceImageURL(ctx context.Context, id, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE assets SET source_image_url = NULLIF($2, ''), updated_at = NOW() WHERE id = $1;`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Rename updates the display name.
func (r *AssetRepositoryPG) Rename(ctx context.Context, id, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE assets SET name = $2, updated_at = NOW() WHERE id = $1;`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the record. External task rows cascade at the schema level.
func (r *AssetRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
