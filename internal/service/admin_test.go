package service

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/hackphs/cortexvision/internal/repository"
)

func newAdminServiceForTest(db *gorm.DB, st *fakeStorage, emb *fakeEmbedder) *AdminService {
	return newAdminServiceWithIndex(db, st, emb, nil)
}

func newAdminServiceWithIndex(db *gorm.DB, st *fakeStorage, emb *fakeEmbedder, idx ClassIndex) *AdminService {
	return NewAdminService(
		repository.NewModelRepository(db),
		repository.NewImageRepository(db),
		repository.NewEmbeddingRepository(db),
		repository.NewJobRepository(db),
		st, emb, idx,
		"images/trained",
	)
}

func TestAdminOverviewCountsImagesPerClass(t *testing.T) {
	db := newTestDB(t)
	st := newFakeStorage()
	emb := &fakeEmbedder{}
	teach := newTeachServiceForTest(t, db, st, &fakeAcquirer{produce: 3}, emb)
	ctx := context.Background()

	if _, err := teach.Teach(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("teach: %v", err)
	}
	if _, err := teach.Teach(ctx, "tools", "wrench"); err != nil {
		t.Fatalf("teach: %v", err)
	}

	admin := newAdminServiceForTest(db, st, emb)
	overview, err := admin.GetOverview(ctx)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}

	if len(overview.Models) != 1 || overview.Models[0].ClassCount != 2 {
		t.Errorf("models = %+v", overview.Models)
	}
	if len(overview.Classes) != 2 {
		t.Fatalf("classes = %+v", overview.Classes)
	}
	for _, c := range overview.Classes {
		if c.ImageCount != 3 {
			t.Errorf("class %s image count = %d, want 3", c.ClassName, c.ImageCount)
		}
	}
}

func TestAdminDiagnosticsReportsCapability(t *testing.T) {
	db := newTestDB(t)
	emb := &fakeEmbedder{functions: []string{"embed_text", "embed_image"}}
	admin := newAdminServiceForTest(db, newFakeStorage(), emb)

	diag, err := admin.GetDiagnostics(context.Background())
	if err != nil {
		t.Fatalf("GetDiagnostics: %v", err)
	}
	if !diag.ImagePathAvailable {
		t.Error("image path should be reported available")
	}

	emb.functions = []string{"embed_text"}
	diag, err = admin.GetDiagnostics(context.Background())
	if err != nil {
		t.Fatalf("GetDiagnostics: %v", err)
	}
	if diag.ImagePathAvailable {
		t.Error("image path should be reported unavailable")
	}
}

func TestAdminDeleteClassRemovesEverything(t *testing.T) {
	db := newTestDB(t)
	st := newFakeStorage()
	emb := &fakeEmbedder{}
	teach := newTeachServiceForTest(t, db, st, &fakeAcquirer{produce: 2}, emb)
	ctx := context.Background()

	if _, err := teach.Teach(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("teach: %v", err)
	}

	admin := newAdminServiceForTest(db, st, emb)
	if err := admin.DeleteClass(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}

	imgRepo := repository.NewImageRepository(db)
	count, _ := imgRepo.Count(ctx)
	if count != 0 {
		t.Errorf("metadata rows = %d, want 0", count)
	}
	if len(st.objects) != 0 {
		t.Errorf("stored objects = %d, want 0", len(st.objects))
	}
	row, _ := repository.NewEmbeddingRepository(db).GetByName(ctx, "hammer")
	if row != nil {
		t.Error("embedding row survived class delete")
	}
}

func TestAdminDeleteClassWithPunctuatedName(t *testing.T) {
	db := newTestDB(t)
	st := newFakeStorage()
	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	teach := newTeachServiceWithIndex(t, db, st, &fakeAcquirer{produce: 2}, emb, idx)
	ctx := context.Background()

	result, err := teach.Teach(ctx, "Dog Breeds", "St. Bernard")
	if err != nil {
		t.Fatalf("teach: %v", err)
	}

	// Deletion takes the names as taught; tokens only locate the objects
	admin := newAdminServiceWithIndex(db, st, emb, idx)
	if err := admin.DeleteClass(ctx, "Dog Breeds", "St. Bernard"); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}

	has, err := repository.NewModelRepository(db).HasClass(ctx, "Dog Breeds", "St. Bernard")
	if err != nil {
		t.Fatalf("HasClass: %v", err)
	}
	if has {
		t.Error("mapping survived delete")
	}
	if len(st.objects) != 0 {
		t.Errorf("stored objects = %d, want 0", len(st.objects))
	}
	row, _ := repository.NewEmbeddingRepository(db).GetByName(ctx, "St. Bernard")
	if row != nil {
		t.Error("embedding row survived class delete")
	}
	if len(idx.deleted) != 1 || idx.deleted[0] != result.ClassID {
		t.Errorf("index deletes = %v, want [%s]", idx.deleted, result.ClassID)
	}
}

func TestAdminDeleteClassKeepsSharedEmbedding(t *testing.T) {
	db := newTestDB(t)
	st := newFakeStorage()
	emb := &fakeEmbedder{}
	teach := newTeachServiceForTest(t, db, st, &fakeAcquirer{produce: 1}, emb)
	ctx := context.Background()

	if _, err := teach.Teach(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("teach: %v", err)
	}
	if _, err := teach.Teach(ctx, "hardware", "hammer"); err != nil {
		t.Fatalf("teach: %v", err)
	}

	admin := newAdminServiceForTest(db, st, emb)
	if err := admin.DeleteClass(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}

	// The other model still teaches this class name
	row, err := repository.NewEmbeddingRepository(db).GetByName(ctx, "hammer")
	if err != nil || row == nil {
		t.Error("shared embedding row removed while still referenced")
	}
}

func TestAdminCleanupRemovesOrphanDirectories(t *testing.T) {
	db := newTestDB(t)
	st := newFakeStorage()
	emb := &fakeEmbedder{}
	teach := newTeachServiceForTest(t, db, st, &fakeAcquirer{produce: 2}, emb)
	ctx := context.Background()

	if _, err := teach.Teach(ctx, "tools", "hammer"); err != nil {
		t.Fatalf("teach: %v", err)
	}

	// Simulate an interrupted run: objects with no metadata rows
	st.objects["images/trained/tools/ghost/a.jpg"] = []byte("x")
	st.objects["images/trained/tools/ghost/b.jpg"] = []byte("y")

	admin := newAdminServiceForTest(db, st, emb)
	report, err := admin.CleanupOrphans(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphans: %v", err)
	}

	if len(report.OrphanPrefixes) != 1 || report.ObjectsRemoved != 2 {
		t.Errorf("report = %+v", report)
	}
	if _, ok := st.objects["images/trained/tools/ghost/a.jpg"]; ok {
		t.Error("orphan object survived cleanup")
	}
	// Referenced objects stay
	keys, _ := st.ListPrefix(ctx, "images/trained/tools/hammer/")
	if len(keys) != 2 {
		t.Errorf("referenced objects = %d, want 2", len(keys))
	}
}
