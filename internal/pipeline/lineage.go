package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"assetforge/internal/domain"
)

// Lineage is the full version family of an asset: the discovered root,
// then every descendant of that root in creation order.
type Lineage struct {
	RootID       string               `json:"root_id"`
	RequestedID  string               `json:"requested_id"`
	History      []domain.AssetRecord `json:"history"`
	VersionCount int                  `json:"version_count"`
}

// ResolveLineage climbs from the requested asset to its root, then walks
// the whole tree under that root depth-first. A visited set guards both
// directions so a corrupted parent chain (self-reference, cycle) yields
// a truncated result instead of a hang.
func (s *Service) ResolveLineage(ctx context.Context, assetID string) (*Lineage, error) {
	current, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}

	seen := map[string]bool{current.ID: true}
	root := current
	for root.ParentID != "" && !seen[root.ParentID] {
		seen[root.ParentID] = true
		parent, err := s.assets.GetByID(ctx, root.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Dangling parent reference: treat the last reachable
				// record as the root.
				s.logger.Warn().Str("asset_id", root.ID).Str("parent_id", root.ParentID).Msg("parent record missing, treating asset as root")
				break
			}
			return nil, err
		}
		root = parent
	}

	visited := map[string]bool{}
	var history []domain.AssetRecord
	var walk func(rec domain.AssetRecord) error
	walk = func(rec domain.AssetRecord) error {
		if visited[rec.ID] {
			return nil
		}
		visited[rec.ID] = true
		history = append(history, rec)
		children, err := s.assets.ListChildren(ctx, rec.ID)
		if err != nil {
			return err
		}
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].CreatedAt.Before(children[j].CreatedAt)
		})
		for _, child := range children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(*root); err != nil {
		return nil, err
	}

	return &Lineage{
		RootID:       root.ID,
		RequestedID:  assetID,
		History:      history,
		VersionCount: len(history),
	}, nil
}
