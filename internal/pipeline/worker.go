package pipeline

import (
	"context"
	"errors"

	"assetforge/internal/domain"
)

// UnfinishedTasks lists external tasks whose asset has not reached a
// terminal state, oldest first.
func (s *Service) UnfinishedTasks(ctx context.Context, limit int) ([]domain.ExternalTask, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.tasks.ListUnfinished(ctx, limit)
}

// ExpireTask fails the asset behind a task that exhausted its polling
// budget. A no-op when the asset already reached a terminal state.
func (s *Service) ExpireTask(ctx context.Context, taskID, reason string) error {
	unlock := s.lockTask(taskID)
	defer unlock()

	task, err := s.tasks.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	asset, err := s.assets.GetByID(ctx, task.AssetID)
	if err != nil {
		return err
	}
	if asset.Status.Terminal() {
		return nil
	}
	if _, err := s.assets.FailAsset(ctx, asset.ID, reason); err != nil {
		return err
	}
	if err := s.tasks.RecordFailure(ctx, taskID, "EXPIRED", reason); err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to record task expiry")
	}
	s.logger.Info().Str("task_id", taskID).Str("asset_id", asset.ID).Msg("task expired")
	return nil
}
