package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"assetforge/internal/domain"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/storage"
)

// GenerateConcept runs tier 1: create a processing record, invoke the 2D
// generator chain, and commit the terminal state. The record is created
// before the generator call so a crash mid-generation is observable as a
// stuck processing row rather than a silently missing one.
func (s *Service) GenerateConcept(ctx context.Context, prompt, refinementNotes string) (*domain.AssetRecord, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidPrompt)
	}

	record := &domain.AssetRecord{
		ID:     uuid.NewString(),
		Name:   imgprov.DisplayName("2D Concept", prompt),
		Prompt: prompt,
		Type:   domain.AssetTypeImage2D,
		Status: domain.AssetStatusProcessing,
	}
	if err := s.assets.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create concept record: %w", err)
	}
	return s.runConceptGeneration(ctx, record, imgprov.Request{Prompt: prompt, RefinementNotes: refinementNotes})
}

// RefineConcept runs a tier-1 refinement: a new image_2d record derived
// from an existing one, with the refinement instructions appended to the
// stored prompt for audit.
func (s *Service) RefineConcept(ctx context.Context, imageID, refinement string) (*domain.AssetRecord, error) {
	refinement = strings.TrimSpace(refinement)
	if refinement == "" {
		return nil, fmt.Errorf("%w: refinement text is required", domain.ErrInvalidPrompt)
	}
	source, err := s.assets.GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load source image: %w", err)
	}
	if source.Type != domain.AssetTypeImage2D {
		return nil, fmt.Errorf("%w: asset %s is not a 2d image", domain.ErrPrecondition, imageID)
	}

	record := &domain.AssetRecord{
		ID:       uuid.NewString(),
		Name:     "Refined - " + source.Name,
		Prompt:   fmt.Sprintf("%s\n\nRefinement: %s", source.Prompt, refinement),
		Type:     domain.AssetTypeImage2D,
		Status:   domain.AssetStatusProcessing,
		ParentID: source.ID,
	}
	if err := s.assets.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create refined record: %w", err)
	}
	return s.runConceptGeneration(ctx, record, imgprov.Request{Prompt: source.Prompt, RefinementNotes: refinement})
}

func (s *Service) runConceptGeneration(ctx context.Context, record *domain.AssetRecord, req imgprov.Request) (*domain.AssetRecord, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	result, err := s.images.Generate(genCtx, req)
	if err != nil {
		return s.failRecord(ctx, record, generationError("concept generation", err, genCtx))
	}

	filename, err := s.store.Save(ctx, storage.TierImages, result.Filename, result.Data)
	if err != nil {
		return s.failRecord(ctx, record, fmt.Errorf("persist concept image: %w", err))
	}
	if result.ExternalURL != "" {
		if err := s.assets.SetSourceImageURL(ctx, record.ID, result.ExternalURL); err != nil {
			s.logger.Warn().Err(err).Str("asset_id", record.ID).Msg("failed to store external image reference")
		}
	}
	if _, err := s.assets.CompleteAsset(ctx, record.ID, domain.ArtifactPaths{ImagePath: filename}); err != nil {
		return nil, fmt.Errorf("complete concept record: %w", err)
	}
	return s.assets.GetByID(ctx, record.ID)
}

// GeneratePrototype runs tier 2: a synchronous image-to-3D conversion of
// an existing concept image. No automatic retry; callers resubmit.
func (s *Service) GeneratePrototype(ctx context.Context, imageID string) (*domain.AssetRecord, error) {
	source, err := s.assets.GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("load source image: %w", err)
	}
	if source.Type != domain.AssetTypeImage2D {
		return nil, fmt.Errorf("%w: asset %s is not a 2d image", domain.ErrPrecondition, imageID)
	}
	if source.ImagePath == "" {
		return nil, fmt.Errorf("%w: source image has no stored artifact", domain.ErrPrecondition)
	}
	if active, err := s.assets.ActiveChild(ctx, source.ID, domain.AssetTypePrototype); err == nil {
		return nil, fmt.Errorf("%w: prototype %s already in flight for image %s", domain.ErrDuplicateOperation, active.ID, imageID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	record := &domain.AssetRecord{
		ID:       uuid.NewString(),
		Name:     "Prototype - " + source.Name,
		Prompt:   source.Prompt,
		Type:     domain.AssetTypePrototype,
		Status:   domain.AssetStatusProcessing,
		ParentID: source.ID,
	}
	if err := s.assets.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create prototype record: %w", err)
	}

	imageData, err := s.store.Read(ctx, storage.TierImages, source.ImagePath)
	if err != nil {
		return s.failRecord(ctx, record, fmt.Errorf("read source image: %w", err))
	}

	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()
	result, err := s.mesher.Generate(genCtx, mesh.Request{Prompt: source.Prompt, ImageData: imageData})
	if err != nil {
		return s.failRecord(ctx, record, generationError("prototype generation", err, genCtx))
	}

	objName, err := s.store.Save(ctx, storage.TierPrototypes, result.OBJFilename, result.OBJData)
	if err != nil {
		return s.failRecord(ctx, record, fmt.Errorf("persist prototype mesh: %w", err))
	}
	gifName, err := s.store.Save(ctx, storage.TierPrototypes, result.GIFFilename, result.GIFData)
	if err != nil {
		return s.failRecord(ctx, record, fmt.Errorf("persist prototype preview: %w", err))
	}
	if _, err := s.assets.CompleteAsset(ctx, record.ID, domain.ArtifactPaths{ObjPath: objName, GifPath: gifName}); err != nil {
		return nil, fmt.Errorf("complete prototype record: %w", err)
	}
	return s.assets.GetByID(ctx, record.ID)
}

// GenerateFinalModel runs tier 3: submit an asynchronous image-to-3D job
// at the remote provider and return immediately. All preconditions are
// checked before any row is created, so a rejected request leaves no
// partial state. Completion arrives later through the reconciler.
func (s *Service) GenerateFinalModel(ctx context.Context, prototypeID string) (*domain.AssetRecord, *domain.ExternalTask, error) {
	if s.jobs == nil {
		return nil, nil, fmt.Errorf("%w: final model provider is not configured", domain.ErrProviderFailure)
	}
	prototype, err := s.assets.GetByID(ctx, prototypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load prototype: %w", err)
	}
	if prototype.Type != domain.AssetTypePrototype {
		return nil, nil, fmt.Errorf("%w: asset %s is not a prototype", domain.ErrPrecondition, prototypeID)
	}
	if prototype.ParentID == "" {
		return nil, nil, fmt.Errorf("%w: prototype has no source image", domain.ErrPrecondition)
	}
	sourceImage, err := s.assets.GetByID(ctx, prototype.ParentID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: source image of prototype %s is missing", domain.ErrPrecondition, prototypeID)
	}
	if sourceImage.SourceImageURL == "" {
		return nil, nil, fmt.Errorf("%w: source image has no externally reachable reference", domain.ErrPrecondition)
	}
	if active, err := s.assets.ActiveChild(ctx, prototype.ID, domain.AssetTypeFinalModel); err == nil {
		return nil, nil, fmt.Errorf("%w: final model %s already in flight for prototype %s", domain.ErrDuplicateOperation, active.ID, prototypeID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	record := &domain.AssetRecord{
		ID:       uuid.NewString(),
		Name:     "Final - " + prototype.Name,
		Prompt:   prototype.Prompt,
		Type:     domain.AssetTypeFinalModel,
		Status:   domain.AssetStatusProcessing,
		ParentID: prototype.ID,
	}
	if err := s.assets.Create(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("create final model record: %w", err)
	}

	taskID, err := s.jobs.CreateJob(ctx, sourceImage.SourceImageURL, record.Name)
	if err != nil {
		_, ferr := s.failRecord(ctx, record, fmt.Errorf("%w: create job: %v", domain.ErrProviderFailure, err))
		return nil, nil, ferr
	}

	task := &domain.ExternalTask{TaskID: taskID, AssetID: record.ID, Status: "pending"}
	if err := s.tasks.Create(ctx, task); err != nil {
		_, ferr := s.failRecord(ctx, record, fmt.Errorf("persist task tracker: %w", err))
		return nil, nil, ferr
	}
	if err := s.assets.SetExternalTaskID(ctx, record.ID, taskID); err != nil {
		s.logger.Warn().Err(err).Str("asset_id", record.ID).Msg("failed to attach task id to record")
	}

	record, err = s.assets.GetByID(ctx, record.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().Str("asset_id", record.ID).Str("task_id", taskID).Msg("final model job submitted")
	return record, task, nil
}

// failRecord flips the record to failed with the error detail and
// returns the refreshed record alongside the original error.
func (s *Service) failRecord(ctx context.Context, record *domain.AssetRecord, cause error) (*domain.AssetRecord, error) {
	if _, err := s.assets.FailAsset(ctx, record.ID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("asset_id", record.ID).Msg("failed to mark record failed")
	}
	refreshed, err := s.assets.GetByID(ctx, record.ID)
	if err != nil {
		refreshed = record
	}
	return refreshed, cause
}

// generationError attaches a timeout kind when the bounded generator
// context expired.
func generationError(op string, err error, genCtx context.Context) error {
	if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out", op, domain.ErrProviderFailure)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrProviderFailure, err)
}
