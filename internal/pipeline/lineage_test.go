package pipeline

import (
	"context"
	"testing"

	"assetforge/internal/domain"
)

func TestResolveLineageOrdersRootFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	root, err := e.svc.GenerateConcept(ctx, "a red sword", "")
	if err != nil {
		t.Fatalf("GenerateConcept: %v", err)
	}
	a, err := e.svc.RefineConcept(ctx, root.ID, "glowing edge")
	if err != nil {
		t.Fatalf("RefineConcept a: %v", err)
	}
	b, err := e.svc.RefineConcept(ctx, a.ID, "golden hilt")
	if err != nil {
		t.Fatalf("RefineConcept b: %v", err)
	}
	c, err := e.svc.RefineConcept(ctx, b.ID, "rune engravings")
	if err != nil {
		t.Fatalf("RefineConcept c: %v", err)
	}

	// Resolving from a mid-chain node still discovers the root.
	lineage, err := e.svc.ResolveLineage(ctx, b.ID)
	if err != nil {
		t.Fatalf("ResolveLineage: %v", err)
	}
	if lineage.RootID != root.ID {
		t.Fatalf("root = %q, want %q", lineage.RootID, root.ID)
	}
	if lineage.VersionCount != 4 {
		t.Fatalf("version count = %d, want 4", lineage.VersionCount)
	}
	wantOrder := []string{root.ID, a.ID, b.ID, c.ID}
	for i, rec := range lineage.History {
		if rec.ID != wantOrder[i] {
			t.Fatalf("history[%d] = %q, want %q", i, rec.ID, wantOrder[i])
		}
	}
}

func TestResolveLineageBranches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	root, _ := e.svc.GenerateConcept(ctx, "a red sword", "")
	first, _ := e.svc.RefineConcept(ctx, root.ID, "longer blade")
	second, _ := e.svc.RefineConcept(ctx, root.ID, "shorter blade")

	lineage, err := e.svc.ResolveLineage(ctx, first.ID)
	if err != nil {
		t.Fatalf("ResolveLineage: %v", err)
	}
	if lineage.VersionCount != 3 {
		t.Fatalf("version count = %d, want 3", lineage.VersionCount)
	}
	// Siblings appear in creation order after the root.
	if lineage.History[1].ID != first.ID || lineage.History[2].ID != second.ID {
		t.Fatalf("sibling order wrong: %q, %q", lineage.History[1].ID, lineage.History[2].ID)
	}
}

func TestResolveLineageSelfParentTerminates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rec := &domain.AssetRecord{
		ID:     "self-ref",
		Name:   "corrupt",
		Prompt: "x",
		Type:   domain.AssetTypeImage2D,
		Status: domain.AssetStatusCompleted,
	}
	rec.ParentID = rec.ID
	if err := e.store.Assets().Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lineage, err := e.svc.ResolveLineage(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ResolveLineage: %v", err)
	}
	if lineage.RootID != rec.ID {
		t.Fatalf("root = %q, want the record itself", lineage.RootID)
	}
}

func TestResolveLineageCycleTerminates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := &domain.AssetRecord{ID: "cyc-a", Name: "a", Prompt: "x", Type: domain.AssetTypeImage2D, Status: domain.AssetStatusCompleted, ParentID: "cyc-b"}
	second := &domain.AssetRecord{ID: "cyc-b", Name: "b", Prompt: "x", Type: domain.AssetTypeImage2D, Status: domain.AssetStatusCompleted, ParentID: "cyc-a"}
	if err := e.store.Assets().Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.store.Assets().Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lineage, err := e.svc.ResolveLineage(ctx, "cyc-a")
	if err != nil {
		t.Fatalf("ResolveLineage: %v", err)
	}
	if lineage.VersionCount == 0 {
		t.Fatalf("empty lineage for cyclic chain")
	}
}

func TestResolveLineageDanglingParent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	orphan := &domain.AssetRecord{ID: "orphan", Name: "o", Prompt: "x", Type: domain.AssetTypeImage2D, Status: domain.AssetStatusCompleted, ParentID: "vanished"}
	if err := e.store.Assets().Create(ctx, orphan); err != nil {
		t.Fatalf("Create: %v", err)
	}

	lineage, err := e.svc.ResolveLineage(ctx, "orphan")
	if err != nil {
		t.Fatalf("ResolveLineage: %v", err)
	}
	if lineage.RootID != "orphan" {
		t.Fatalf("root = %q, want orphan treated as root", lineage.RootID)
	}
}
