package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	"assetforge/internal/storage"
)

func TestReconcileUnknownTaskIgnored(t *testing.T) {
	e := newEnv(t)
	outcome, err := e.svc.Reconcile(context.Background(), succeededObservation("no-such-task"))
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}
}

func TestReconcileCompletesFinalModel(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	outcome, err := e.svc.Reconcile(ctx, succeededObservation(taskID))
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", outcome)
	}

	asset, err := e.store.Assets().GetByID(ctx, assetID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if asset.Status != domain.AssetStatusCompleted {
		t.Fatalf("status = %s, want completed", asset.Status)
	}
	if asset.ObjPath == "" || asset.FbxPath == "" || asset.TexturePath == "" {
		t.Fatalf("artifact paths incomplete: %+v", asset)
	}

	task, err := e.store.Tasks().GetByTaskID(ctx, taskID)
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if task.Progress != 100 {
		t.Fatalf("task progress = %d, want 100", task.Progress)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	if _, err := e.svc.Reconcile(ctx, succeededObservation(taskID)); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	fetchedAfterFirst := e.jobs.fetched

	outcome, err := e.svc.Reconcile(ctx, succeededObservation(taskID))
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if outcome != OutcomeAlreadyDone {
		t.Fatalf("second outcome = %s, want already_done", outcome)
	}
	if e.jobs.fetched != fetchedAfterFirst {
		t.Fatalf("redelivery downloaded artifacts again: %d -> %d", fetchedAfterFirst, e.jobs.fetched)
	}

	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusCompleted {
		t.Fatalf("status = %s after redelivery, want completed", asset.Status)
	}
}

func TestReconcileConcurrentSuccessExactlyOnce(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	const n = 8
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.svc.Reconcile(ctx, succeededObservation(taskID))
			if err != nil {
				t.Errorf("Reconcile %d: %v", i, err)
			}
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	completed := 0
	for _, out := range outcomes {
		if out == OutcomeCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("completed outcomes = %d, want exactly 1", completed)
	}

	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusCompleted {
		t.Fatalf("status = %s, want completed", asset.Status)
	}
}

func TestReconcileProgressMonotonic(t *testing.T) {
	e := newEnv(t)
	_, taskID := seedFinal(t, e)
	ctx := context.Background()

	for _, p := range []int{10, 45, 30} {
		outcome, err := e.svc.Reconcile(ctx, Observation{TaskID: taskID, Status: "IN_PROGRESS", Progress: p})
		if err != nil {
			t.Fatalf("Reconcile progress %d: %v", p, err)
		}
		if outcome != OutcomeInProgress {
			t.Fatalf("outcome = %s, want in_progress", outcome)
		}
	}

	task, err := e.store.Tasks().GetByTaskID(ctx, taskID)
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if task.Progress != 45 {
		t.Fatalf("progress = %d after 10/45/30, want 45", task.Progress)
	}
}

func TestReconcileFailedAndExpired(t *testing.T) {
	for _, status := range []string{"FAILED", "expired"} {
		t.Run(status, func(t *testing.T) {
			e := newEnv(t)
			assetID, taskID := seedFinal(t, e)
			ctx := context.Background()

			outcome, err := e.svc.Reconcile(ctx, Observation{TaskID: taskID, Status: status, Error: "mesh rejected"})
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if outcome != OutcomeFailed {
				t.Fatalf("outcome = %s, want failed", outcome)
			}
			asset, _ := e.store.Assets().GetByID(ctx, assetID)
			if asset.Status != domain.AssetStatusFailed {
				t.Fatalf("status = %s, want failed", asset.Status)
			}
			if asset.ErrorMessage == "" {
				t.Fatalf("error message not recorded")
			}
		})
	}
}

// completeBeforeFail commits a success on the asset inside FailAsset,
// simulating another process winning the terminal transition between
// the reconciler's terminal check and its own commit.
type completeBeforeFail struct {
	domain.AssetRepository
}

func (r completeBeforeFail) FailAsset(ctx context.Context, id, detail string) (bool, error) {
	if _, err := r.AssetRepository.CompleteAsset(ctx, id, domain.ArtifactPaths{ObjPath: "winner.obj"}); err != nil {
		return false, err
	}
	return r.AssetRepository.FailAsset(ctx, id, detail)
}

func TestReconcileFailureLostRaceKeepsCompletion(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	fs, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	racing := NewService(Deps{
		Assets: completeBeforeFail{e.store.Assets()},
		Tasks:  e.store.Tasks(),
		Store:  fs,
		Images: e.images,
		Mesher: e.mesher,
		Jobs:   e.jobs,
		Logger: zerolog.Nop(),
	})

	outcome, err := racing.Reconcile(ctx, Observation{TaskID: taskID, Status: "FAILED", Error: "mesh rejected"})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeAlreadyDone {
		t.Fatalf("outcome = %s, want already_done", outcome)
	}
	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusCompleted {
		t.Fatalf("completed asset overwritten: %s", asset.Status)
	}
	task, _ := e.store.Tasks().GetByTaskID(ctx, taskID)
	if task.ErrorDetail != "" {
		t.Fatalf("task failure recorded after losing the race: %q", task.ErrorDetail)
	}
}

func TestReconcileTerminalStateImmutable(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	if _, err := e.svc.Reconcile(ctx, Observation{TaskID: taskID, Status: "FAILED", Error: "boom"}); err != nil {
		t.Fatalf("fail Reconcile: %v", err)
	}

	outcome, err := e.svc.Reconcile(ctx, succeededObservation(taskID))
	if err != nil {
		t.Fatalf("late success Reconcile: %v", err)
	}
	if outcome != OutcomeAlreadyDone {
		t.Fatalf("outcome = %s, want already_done", outcome)
	}
	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusFailed {
		t.Fatalf("terminal state changed: %s", asset.Status)
	}
}

func TestReconcileSucceededWithoutPayloadStaysInProgress(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	outcome, err := e.svc.Reconcile(ctx, Observation{TaskID: taskID, Status: "SUCCEEDED", Progress: 100})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeInProgress {
		t.Fatalf("outcome = %s, want in_progress", outcome)
	}
	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusProcessing {
		t.Fatalf("status = %s, want processing", asset.Status)
	}
}

func TestReconcileFetchFailureLeavesProcessing(t *testing.T) {
	e := newEnv(t)
	assetID, taskID := seedFinal(t, e)
	ctx := context.Background()

	e.jobs.fetchErr = errors.New("cdn unavailable")
	outcome, err := e.svc.Reconcile(ctx, succeededObservation(taskID))
	if err == nil {
		t.Fatalf("expected error when downloads fail")
	}
	if outcome != OutcomeInProgress {
		t.Fatalf("outcome = %s, want in_progress", outcome)
	}

	asset, _ := e.store.Assets().GetByID(ctx, assetID)
	if asset.Status != domain.AssetStatusProcessing {
		t.Fatalf("status = %s, want processing for retry", asset.Status)
	}

	// The next delivery, with the provider healthy, completes normally.
	e.jobs.fetchErr = nil
	outcome, err = e.svc.Reconcile(ctx, succeededObservation(taskID))
	if err != nil {
		t.Fatalf("retry Reconcile: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("retry outcome = %s, want completed", outcome)
	}
}

func TestPollTaskUnknownTask(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.svc.PollTask(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPollTaskProviderError(t *testing.T) {
	e := newEnv(t)
	_, taskID := seedFinal(t, e)
	e.jobs.statusErr = errors.New("http 500")

	_, task, err := e.svc.PollTask(context.Background(), taskID)
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want ErrProviderFailure", err)
	}
	if task == nil || task.TaskID != taskID {
		t.Fatalf("stored task not returned on provider error")
	}
}
