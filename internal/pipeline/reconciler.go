package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"assetforge/internal/domain"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/meshy"
	"assetforge/internal/storage"
)

// Observation is one report about a remote job, regardless of whether it
// arrived via polling or a webhook. Both paths feed the same Reconcile.
type Observation struct {
	TaskID   string
	Status   string
	Progress int
	Result   *meshy.JobResult
	Error    string
}

// Outcome classifies what Reconcile did with an observation.
type Outcome int

const (
	// OutcomeIgnored means the task id is unknown; nothing was touched.
	OutcomeIgnored Outcome = iota
	// OutcomeAlreadyDone means the asset was already terminal.
	OutcomeAlreadyDone
	// OutcomeInProgress means progress was recorded, no terminal change.
	OutcomeInProgress
	// OutcomeCompleted means artifacts were downloaded and the asset
	// transitioned to completed by this call.
	OutcomeCompleted
	// OutcomeFailed means the asset transitioned to failed by this call.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomeInProgress:
		return "in_progress"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconcile applies one provider observation to local state. It is safe
// to call concurrently and repeatedly with the same observation: within
// the process a per-task lock serializes work, and across processes the
// repository only commits a terminal transition while the asset is still
// non-terminal, so exactly one caller wins.
func (s *Service) Reconcile(ctx context.Context, obs Observation) (Outcome, error) {
	unlock := s.lockTask(obs.TaskID)
	defer unlock()

	task, err := s.tasks.GetByTaskID(ctx, obs.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug().Str("task_id", obs.TaskID).Msg("observation for unknown task ignored")
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, err
	}
	asset, err := s.assets.GetByID(ctx, task.AssetID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("load asset for task %s: %w", obs.TaskID, err)
	}
	if asset.Status.Terminal() {
		return OutcomeAlreadyDone, nil
	}

	switch classifyJobStatus(obs.Status) {
	case jobSucceeded:
		if obs.Result == nil {
			// Some providers flip status before the payload is ready.
			// Record progress and wait for an observation with urls.
			if err := s.tasks.RecordProgress(ctx, obs.TaskID, obs.Status, obs.Progress); err != nil {
				return OutcomeInProgress, err
			}
			return OutcomeInProgress, nil
		}
		return s.completeFromResult(ctx, asset, task, obs)
	case jobFailed:
		detail := obs.Error
		if detail == "" {
			detail = "job reported " + strings.ToLower(obs.Status)
		}
		won, err := s.assets.FailAsset(ctx, asset.ID, detail)
		if err != nil {
			return OutcomeFailed, err
		}
		if !won {
			// Another process committed a terminal state first; keep the
			// task row as that process recorded it.
			return OutcomeAlreadyDone, nil
		}
		if err := s.tasks.RecordFailure(ctx, obs.TaskID, obs.Status, detail); err != nil {
			s.logger.Warn().Err(err).Str("task_id", obs.TaskID).Msg("failed to record task failure")
		}
		s.logger.Info().Str("task_id", obs.TaskID).Str("asset_id", asset.ID).Str("detail", detail).Msg("final model job failed")
		return OutcomeFailed, nil
	default:
		if err := s.tasks.RecordProgress(ctx, obs.TaskID, obs.Status, obs.Progress); err != nil {
			return OutcomeInProgress, err
		}
		return OutcomeInProgress, nil
	}
}

func (s *Service) completeFromResult(ctx context.Context, asset *domain.AssetRecord, task *domain.ExternalTask, obs Observation) (Outcome, error) {
	result := obs.Result
	if result.ModelURLs.OBJ == "" {
		return OutcomeInProgress, fmt.Errorf("%w: job succeeded without an obj url", domain.ErrProviderFailure)
	}

	var (
		objData, fbxData, texData []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objData, err = s.jobs.FetchArtifact(gctx, result.ModelURLs.OBJ)
		return err
	})
	if result.ModelURLs.FBX != "" {
		g.Go(func() error {
			var err error
			fbxData, err = s.jobs.FetchArtifact(gctx, result.ModelURLs.FBX)
			return err
		})
	}
	if len(result.TextureURLs) > 0 && result.TextureURLs[0].BaseColor != "" {
		g.Go(func() error {
			var err error
			texData, err = s.jobs.FetchArtifact(gctx, result.TextureURLs[0].BaseColor)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// Leave the asset processing so a later observation retries the
		// downloads.
		return OutcomeInProgress, fmt.Errorf("%w: fetch artifacts: %v", domain.ErrProviderFailure, err)
	}

	var paths domain.ArtifactPaths
	var saved []savedFile
	objName, err := s.store.Save(ctx, storage.TierFinal, imgprov.ArtifactFilename("final", "obj"), objData)
	if err != nil {
		return OutcomeInProgress, fmt.Errorf("persist final mesh: %w", err)
	}
	paths.ObjPath = objName
	saved = append(saved, savedFile{storage.TierFinal, objName})
	if fbxData != nil {
		name, err := s.store.Save(ctx, storage.TierFinal, imgprov.ArtifactFilename("final", "fbx"), fbxData)
		if err != nil {
			s.cleanupFiles(ctx, saved)
			return OutcomeInProgress, fmt.Errorf("persist final fbx: %w", err)
		}
		paths.FbxPath = name
		saved = append(saved, savedFile{storage.TierFinal, name})
	}
	if texData != nil {
		name, err := s.store.Save(ctx, storage.TierFinal, imgprov.ArtifactFilename("texture", "png"), texData)
		if err != nil {
			s.cleanupFiles(ctx, saved)
			return OutcomeInProgress, fmt.Errorf("persist final texture: %w", err)
		}
		paths.TexturePath = name
		saved = append(saved, savedFile{storage.TierFinal, name})
	}

	won, err := s.assets.CompleteAsset(ctx, asset.ID, paths)
	if err != nil {
		s.cleanupFiles(ctx, saved)
		return OutcomeInProgress, err
	}
	if !won {
		// Another process committed a terminal state first; discard our
		// copies of the artifacts.
		s.cleanupFiles(ctx, saved)
		return OutcomeAlreadyDone, nil
	}
	if err := s.tasks.RecordResult(ctx, task.TaskID, obs.Status, result.ModelURLs.OBJ); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("failed to record task result")
	}
	s.logger.Info().Str("task_id", task.TaskID).Str("asset_id", asset.ID).Msg("final model completed")
	return OutcomeCompleted, nil
}

type savedFile struct {
	tier storage.Tier
	name string
}

func (s *Service) cleanupFiles(ctx context.Context, files []savedFile) {
	for _, f := range files {
		if !s.store.Delete(ctx, f.tier, f.name) {
			s.logger.Warn().Str("file", f.name).Msg("failed to remove orphaned artifact")
		}
	}
}

// PollTask fetches the current provider status for a tracked task and
// reconciles it. Unknown task ids are an error here, unlike webhook
// delivery, because the caller explicitly named the task.
func (s *Service) PollTask(ctx context.Context, taskID string) (Outcome, *domain.ExternalTask, error) {
	task, err := s.tasks.GetByTaskID(ctx, taskID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}
	if s.jobs == nil {
		return OutcomeIgnored, task, fmt.Errorf("%w: final model provider is not configured", domain.ErrProviderFailure)
	}
	status, err := s.jobs.JobStatus(ctx, taskID)
	if err != nil {
		return OutcomeIgnored, task, fmt.Errorf("%w: query job status: %v", domain.ErrProviderFailure, err)
	}
	outcome, err := s.Reconcile(ctx, Observation{
		TaskID:   taskID,
		Status:   status.Status,
		Progress: status.Progress,
		Result:   status.Result,
		Error:    status.Error,
	})
	if err != nil {
		return outcome, task, err
	}
	refreshed, terr := s.tasks.GetByTaskID(ctx, taskID)
	if terr == nil {
		task = refreshed
	}
	return outcome, task, nil
}

type jobStatusClass int

const (
	jobInProgress jobStatusClass = iota
	jobSucceeded
	jobFailed
)

// classifyJobStatus folds the provider's status vocabulary into three
// buckets. Anything unrecognized counts as still in progress so a
// provider adding new intermediate states cannot wedge an asset into a
// wrong terminal state.
func classifyJobStatus(status string) jobStatusClass {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCEEDED":
		return jobSucceeded
	case "FAILED", "EXPIRED":
		return jobFailed
	default:
		return jobInProgress
	}
}
