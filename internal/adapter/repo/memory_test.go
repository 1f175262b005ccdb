package repo

import (
	"context"
	"errors"
	"testing"

	"assetforge/internal/domain"
)

func seedAsset(t *testing.T, assets domain.AssetRepository, id string, status domain.AssetStatus) {
	t.Helper()
	err := assets.Create(context.Background(), &domain.AssetRecord{
		ID:     id,
		Name:   "Asset " + id,
		Prompt: "a red sword",
		Type:   domain.AssetTypeFinalModel,
		Status: status,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestCompleteAssetOnlyOnce(t *testing.T) {
	mem := NewMemoryStore()
	assets := mem.Assets()
	ctx := context.Background()
	seedAsset(t, assets, "a1", domain.AssetStatusProcessing)

	won, err := assets.CompleteAsset(ctx, "a1", domain.ArtifactPaths{ObjPath: "m.obj"})
	if err != nil || !won {
		t.Fatalf("first CompleteAsset: won=%v err=%v", won, err)
	}
	won, err = assets.CompleteAsset(ctx, "a1", domain.ArtifactPaths{ObjPath: "other.obj"})
	if err != nil {
		t.Fatalf("second CompleteAsset: %v", err)
	}
	if won {
		t.Fatalf("second CompleteAsset also won")
	}

	rec, _ := assets.GetByID(ctx, "a1")
	if rec.ObjPath != "m.obj" {
		t.Fatalf("obj path overwritten by losing transition: %q", rec.ObjPath)
	}
}

func TestFailAssetRespectsTerminalState(t *testing.T) {
	mem := NewMemoryStore()
	assets := mem.Assets()
	ctx := context.Background()
	seedAsset(t, assets, "a1", domain.AssetStatusProcessing)

	if _, err := assets.CompleteAsset(ctx, "a1", domain.ArtifactPaths{}); err != nil {
		t.Fatalf("CompleteAsset: %v", err)
	}
	won, err := assets.FailAsset(ctx, "a1", "late failure")
	if err != nil {
		t.Fatalf("FailAsset: %v", err)
	}
	if won {
		t.Fatalf("FailAsset flipped a completed asset")
	}
	rec, _ := assets.GetByID(ctx, "a1")
	if rec.Status != domain.AssetStatusCompleted {
		t.Fatalf("status = %s", rec.Status)
	}
}

func TestRecordProgressMonotonic(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	seedAsset(t, mem.Assets(), "a1", domain.AssetStatusProcessing)
	tasks := mem.Tasks()
	if err := tasks.Create(ctx, &domain.ExternalTask{TaskID: "t1", AssetID: "a1", Status: "pending"}); err != nil {
		t.Fatalf("Create task: %v", err)
	}

	for _, p := range []int{10, 45, 30} {
		if err := tasks.RecordProgress(ctx, "t1", "IN_PROGRESS", p); err != nil {
			t.Fatalf("RecordProgress %d: %v", p, err)
		}
	}
	task, err := tasks.GetByTaskID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByTaskID: %v", err)
	}
	if task.Progress != 45 {
		t.Fatalf("progress = %d, want 45", task.Progress)
	}
	if task.Status != "IN_PROGRESS" {
		t.Fatalf("status = %q", task.Status)
	}
}

func TestListUnfinishedSkipsTerminalAssets(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	assets, tasks := mem.Assets(), mem.Tasks()

	seedAsset(t, assets, "live", domain.AssetStatusProcessing)
	seedAsset(t, assets, "done", domain.AssetStatusProcessing)
	_ = tasks.Create(ctx, &domain.ExternalTask{TaskID: "t-live", AssetID: "live", Status: "pending"})
	_ = tasks.Create(ctx, &domain.ExternalTask{TaskID: "t-done", AssetID: "done", Status: "pending"})
	if _, err := assets.CompleteAsset(ctx, "done", domain.ArtifactPaths{}); err != nil {
		t.Fatalf("CompleteAsset: %v", err)
	}

	unfinished, err := tasks.ListUnfinished(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnfinished: %v", err)
	}
	if len(unfinished) != 1 || unfinished[0].TaskID != "t-live" {
		t.Fatalf("unfinished = %+v", unfinished)
	}
}

func TestDeleteCascadesTasks(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	assets, tasks := mem.Assets(), mem.Tasks()

	seedAsset(t, assets, "a1", domain.AssetStatusProcessing)
	_ = tasks.Create(ctx, &domain.ExternalTask{TaskID: "t1", AssetID: "a1", Status: "pending"})

	if err := assets.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tasks.GetByTaskID(ctx, "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("task survived asset deletion: %v", err)
	}
}

func TestActiveChildIgnoresTerminalChildren(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	assets := mem.Assets()

	seedAsset(t, assets, "parent", domain.AssetStatusCompleted)
	_ = assets.Create(ctx, &domain.AssetRecord{ID: "failed-child", Prompt: "x", Type: domain.AssetTypeFinalModel, Status: domain.AssetStatusFailed, ParentID: "parent"})

	if _, err := assets.ActiveChild(ctx, "parent", domain.AssetTypeFinalModel); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("terminal child reported as active: %v", err)
	}

	_ = assets.Create(ctx, &domain.AssetRecord{ID: "live-child", Prompt: "x", Type: domain.AssetTypeFinalModel, Status: domain.AssetStatusProcessing, ParentID: "parent"})
	child, err := assets.ActiveChild(ctx, "parent", domain.AssetTypeFinalModel)
	if err != nil {
		t.Fatalf("ActiveChild: %v", err)
	}
	if child.ID != "live-child" {
		t.Fatalf("active child = %q", child.ID)
	}
}
