package pipeline

import (
	"context"
	"fmt"
	"strings"

	"assetforge/internal/domain"
	"assetforge/internal/storage"
)

// GetAsset loads a single record.
func (s *Service) GetAsset(ctx context.Context, id string) (*domain.AssetRecord, error) {
	return s.assets.GetByID(ctx, id)
}

// ListAssets returns a filtered page of records plus the total count.
func (s *Service) ListAssets(ctx context.Context, filter domain.AssetFilter, limit, offset int) ([]domain.AssetRecord, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.assets.List(ctx, filter, limit, offset)
}

// RenameAsset updates the display name.
func (s *Service) RenameAsset(ctx context.Context, id, name string) (*domain.AssetRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidPrompt)
	}
	if err := s.assets.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	return s.assets.GetByID(ctx, id)
}

// DeleteAsset removes the record and best-effort deletes its stored
// artifacts. Missing files are logged, never fatal; the row removal is
// the operation that must succeed.
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range artifactFiles(asset) {
		if !s.store.Delete(ctx, f.tier, f.name) {
			s.logger.Warn().Str("asset_id", id).Str("file", f.name).Msg("artifact file not removed")
		}
	}
	return s.assets.Delete(ctx, id)
}

// artifactFiles maps a record's stored filenames onto their tier
// directories. Prototype obj files live under prototypes, final obj
// files under final.
func artifactFiles(asset *domain.AssetRecord) []savedFile {
	var files []savedFile
	if asset.ImagePath != "" {
		files = append(files, savedFile{storage.TierImages, asset.ImagePath})
	}
	if asset.GifPath != "" {
		files = append(files, savedFile{storage.TierPrototypes, asset.GifPath})
	}
	if asset.ObjPath != "" {
		tier := storage.TierFinal
		if asset.Type == domain.AssetTypePrototype {
			tier = storage.TierPrototypes
		}
		files = append(files, savedFile{tier, asset.ObjPath})
	}
	if asset.FbxPath != "" {
		files = append(files, savedFile{storage.TierFinal, asset.FbxPath})
	}
	if asset.TexturePath != "" {
		files = append(files, savedFile{storage.TierFinal, asset.TexturePath})
	}
	return files
}

// Stats summarizes the gallery by type and status.
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	ByStatus map[string]int `json:"by_status"`
}

// GalleryStats computes aggregate counts over all records.
func (s *Service) GalleryStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByType: map[string]int{}, ByStatus: map[string]int{}}
	offset := 0
	const page = 200
	for {
		items, total, err := s.assets.List(ctx, domain.AssetFilter{}, page, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			stats.ByType[string(item.Type)]++
			stats.ByStatus[string(item.Status)]++
		}
		stats.Total = total
		offset += len(items)
		if offset >= total || len(items) == 0 {
			break
		}
	}
	return stats, nil
}
