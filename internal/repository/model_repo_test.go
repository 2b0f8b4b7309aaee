package repository

import (
	"context"
	"testing"
)

func TestModelClassRegistration(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	if err := repo.EnsureModel(ctx, "tools"); err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}
	// EnsureModel is idempotent
	if err := repo.EnsureModel(ctx, "tools"); err != nil {
		t.Fatalf("EnsureModel repeat: %v", err)
	}

	if err := repo.AddClass(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("AddClass: %v", err)
	}

	has, err := repo.HasClass(ctx, "tools", "hammer")
	if err != nil || !has {
		t.Fatalf("HasClass = %v, %v, want true", has, err)
	}
	has, err = repo.HasClass(ctx, "tools", "wrench")
	if err != nil || has {
		t.Fatalf("HasClass unknown = %v, %v, want false", has, err)
	}

	// The pair is unique
	if err := repo.AddClass(ctx, "tools", "hammer"); err == nil {
		t.Error("duplicate pair insert succeeded")
	}
	// Same class under a different model is fine
	if err := repo.EnsureModel(ctx, "hardware"); err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}
	if err := repo.AddClass(ctx, "hardware", "hammer"); err != nil {
		t.Errorf("cross-model class rejected: %v", err)
	}
}

func TestModelSummaries(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	for _, m := range []string{"tools", "empty"} {
		if err := repo.EnsureModel(ctx, m); err != nil {
			t.Fatalf("EnsureModel: %v", err)
		}
	}
	for _, c := range []string{"hammer", "wrench"} {
		if err := repo.AddClass(ctx, "tools", c); err != nil {
			t.Fatalf("AddClass: %v", err)
		}
	}

	rows, err := repo.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, row := range rows {
		switch row.Name {
		case "tools":
			if row.ClassCount != 2 {
				t.Errorf("tools class count = %d, want 2", row.ClassCount)
			}
		case "empty":
			if row.ClassCount != 0 {
				t.Errorf("empty class count = %d, want 0", row.ClassCount)
			}
		default:
			t.Errorf("unexpected model %q", row.Name)
		}
	}
}

func TestDeleteModelRemovesMappings(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	if err := repo.EnsureModel(ctx, "tools"); err != nil {
		t.Fatalf("EnsureModel: %v", err)
	}
	if err := repo.AddClass(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("AddClass: %v", err)
	}

	if err := repo.DeleteModel(ctx, "tools"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}

	models, err := repo.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("models = %v, want none", models)
	}
	has, err := repo.HasClass(ctx, "tools", "hammer")
	if err != nil || has {
		t.Errorf("mapping survived model delete")
	}
}
