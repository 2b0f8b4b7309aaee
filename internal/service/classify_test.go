package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/repository"
)

func seedClass(t *testing.T, db *gorm.DB, model, classID, className string, vec domain.Vector) {
	t.Helper()
	if err := db.Where(&domain.Model{Name: model}).FirstOrCreate(&domain.Model{Name: model}).Error; err != nil {
		t.Fatalf("seed model: %v", err)
	}
	if err := db.Create(&domain.ModelClass{ModelName: model, ClassName: className}).Error; err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	if err := db.Create(&domain.ClassEmbedding{
		ClassID:    classID,
		ClassName:  className,
		TextVector: vec,
	}).Error; err != nil {
		t.Fatalf("seed embedding: %v", err)
	}
}

func TestClassifyRanksByCosineSimilarity(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})
	seedClass(t, db, "tools", "c2", "wrench", domain.Vector{0, 1, 0})
	seedClass(t, db, "tools", "c3", "pliers", domain.Vector{0.9, 0.1, 0})

	emb := &fakeEmbedder{
		functions: []string{"embed_text", "embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Mode != "embedding" {
		t.Errorf("mode = %q, want embedding", result.Mode)
	}
	if len(result.Matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(result.Matches))
	}
	if result.Matches[0].ClassName != "hammer" {
		t.Errorf("best match = %q, want hammer", result.Matches[0].ClassName)
	}
	if result.Matches[1].ClassName != "pliers" {
		t.Errorf("second match = %q, want pliers", result.Matches[1].ClassName)
	}
	for i := 1; i < len(result.Matches); i++ {
		if result.Matches[i].Score > result.Matches[i-1].Score {
			t.Errorf("scores not descending at %d: %v", i, result.Matches)
		}
	}
}

func TestClassifyTieBreaksOnClassID(t *testing.T) {
	db := newTestDB(t)
	// Identical vectors force a score tie; c2 was taught before c10
	seedClass(t, db, "tools", "c10", "wrench", domain.Vector{1, 0, 0})
	seedClass(t, db, "tools", "c2", "hammer", domain.Vector{1, 0, 0})

	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Matches[0].ClassID != "c2" {
		t.Errorf("tie resolved to %q, want c2 (numeric order, not lexical)", result.Matches[0].ClassID)
	}
}

func TestClassifyCapsMatchesAtFive(t *testing.T) {
	db := newTestDB(t)
	classes := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, name := range classes {
		seedClass(t, db, "tools", "c"+string(rune('1'+i)), name, domain.Vector{1, 0, 0})
	}

	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(result.Matches) != 5 {
		t.Errorf("matches = %d, want 5", len(result.Matches))
	}
}

func TestClassifyModelFilterRestrictsCandidates(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})
	seedClass(t, db, "animals", "c2", "cat", domain.Vector{1, 0, 0})

	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "animals")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].ClassName != "cat" {
		t.Errorf("filtered matches = %+v, want only cat", result.Matches)
	}
}

func TestClassifyEmptyCandidatesDiagnostic(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})

	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	_, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "no_such_model")
	var empty *domain.EmptyCandidatesError
	if !errors.As(err, &empty) {
		t.Fatalf("err = %v, want EmptyCandidatesError", err)
	}
	if empty.EmbeddingRows != 1 || empty.ModelFilter != "no_such_model" {
		t.Errorf("diagnostic = %+v", empty)
	}
}

func TestClassifyFallsBackToHashMatch(t *testing.T) {
	db := newTestDB(t)
	query := []byte("the taught image bytes")
	sum := sha256.Sum256(query)

	// Basename also collides with a different class; hash must win
	if err := db.Create(&domain.ImageRecord{
		ImageID:  "img_01",
		FilePath: "images/trained/tools/hammer/img_01.jpg",
		Caption:  "hammer",
		FileHash: hex.EncodeToString(sum[:]),
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(&domain.ImageRecord{
		ImageID:  "query",
		FilePath: "images/trained/tools/wrench/query.jpg",
		Caption:  "wrench",
		FileHash: "other",
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	emb := &fakeEmbedder{functions: []string{"embed_text"}} // no image function
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", query, "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Mode != "exact" {
		t.Errorf("mode = %q, want exact", result.Mode)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(result.Matches))
	}
	if result.Matches[0].ClassName != "hammer" || result.Matches[0].Score != 0.98 {
		t.Errorf("match = %+v, want hammer at 0.98", result.Matches[0])
	}
}

func TestClassifyFallsBackToBasenameMatch(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&domain.ImageRecord{
		ImageID:  "query",
		FilePath: "images/trained/tools/wrench/query.jpg",
		Caption:  "wrench",
		FileHash: "unrelated",
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	emb := &fakeEmbedder{functions: []string{}}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("different bytes"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Matches[0].ClassName != "wrench" || result.Matches[0].Score != 0.95 {
		t.Errorf("match = %+v, want wrench at 0.95", result.Matches[0])
	}
}

func TestClassifyLadderExhaustedReportsCounts(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&domain.ImageRecord{
		ImageID:  "img_01",
		FilePath: "images/trained/tools/hammer/img_01.jpg",
		Caption:  "hammer",
		FileHash: "aaa",
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	emb := &fakeEmbedder{functions: []string{}}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	_, err := svc.Classify(context.Background(), "nomatch.jpg", []byte("nope"), "")
	var noMatch *domain.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want NoMatchError", err)
	}
	if noMatch.EmbeddingRows != 0 || noMatch.ImageRows != 1 {
		t.Errorf("diagnostic = %+v, want 0 embedding rows and 1 image row", noMatch)
	}
}

func TestClassifyEmptyDeploymentFallsThroughToLadder(t *testing.T) {
	db := newTestDB(t)

	// Image function exists but nothing was taught: the ladder should
	// produce the diagnostic, not the embedding path
	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	_, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	var noMatch *domain.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("err = %v, want NoMatchError", err)
	}
}

func TestClassifyExactPathMatchesStoredQueryName(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&domain.ImageRecord{
		ImageID:  "photo",
		FilePath: "images/queries/photo.jpg",
		Caption:  "hammer",
		FileHash: "unrelated",
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	emb := &fakeEmbedder{functions: []string{}}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	result, err := svc.Classify(context.Background(), "photo.jpg", []byte("different bytes"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.QueryKey != "images/queries/photo.jpg" {
		t.Errorf("query key = %q, want the client basename under the query prefix", result.QueryKey)
	}
	if result.Matches[0].ClassName != "hammer" || result.Matches[0].Score != 1.0 {
		t.Errorf("match = %+v, want hammer at 1.0 from the stored-path tier", result.Matches[0])
	}
}

func TestClassifyQueryKeyAvoidsOverwritingStoredObject(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})

	st := newFakeStorage()
	st.objects["images/queries/photo.jpg"] = []byte("earlier upload")
	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, st, emb)

	result, err := svc.Classify(context.Background(), "photo.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.QueryKey == "images/queries/photo.jpg" {
		t.Error("query key reused an occupied storage key")
	}
	if !strings.HasPrefix(result.QueryKey, "images/queries/") || !strings.HasSuffix(result.QueryKey, "_photo.jpg") {
		t.Errorf("query key = %q, want a disambiguated basename under the query prefix", result.QueryKey)
	}
	if string(st.objects["images/queries/photo.jpg"]) != "earlier upload" {
		t.Error("earlier upload was overwritten")
	}
}

func TestClassifySkipsHashTierOnLegacySchema(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrator().DropColumn(&domain.ImageRecord{}, "file_hash"); err != nil {
		t.Fatalf("drop column: %v", err)
	}
	if err := db.Exec(
		"INSERT INTO image_metadata (image_id, file_path, caption) VALUES (?, ?, ?)",
		"query", "images/trained/tools/wrench/query.jpg", "wrench",
	).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	emb := &fakeEmbedder{functions: []string{}}
	svc := newClassifyServiceForTest(db, newFakeStorage(), emb)

	// The missing column disables the hash tier; the basename tier must
	// still answer instead of the whole classify failing
	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify on legacy schema: %v", err)
	}
	if result.Matches[0].ClassName != "wrench" || result.Matches[0].Score != 0.95 {
		t.Errorf("match = %+v, want wrench at 0.95 from the basename tier", result.Matches[0])
	}
}

func TestClassifyUsesVectorIndexWhenConfigured(t *testing.T) {
	db := newTestDB(t)
	// Relational rows rank hammer first; the index says otherwise, and
	// an unfiltered query must trust the index
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})
	seedClass(t, db, "tools", "c2", "wrench", domain.Vector{0, 1, 0})

	idx := newFakeIndex()
	idx.hits = []repository.VectorSearchResult{
		{Score: 0.9, Payload: &repository.ClassPayload{ClassID: "c2", ClassName: "wrench"}},
		{Score: 0.4, Payload: &repository.ClassPayload{ClassID: "c1", ClassName: "hammer"}},
	}
	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceWithIndex(db, newFakeStorage(), emb, idx)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if idx.searched != 1 {
		t.Errorf("index searched %d times, want 1", idx.searched)
	}
	if result.Matches[0].ClassName != "wrench" || result.Matches[0].Score != 0.9 {
		t.Errorf("best match = %+v, want wrench at 0.9 from the index", result.Matches[0])
	}

	// Model-filtered queries bypass the index: it carries no model scope
	if _, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "tools"); err != nil {
		t.Fatalf("filtered Classify: %v", err)
	}
	if idx.searched != 1 {
		t.Errorf("filtered query hit the index (searched = %d)", idx.searched)
	}
}

func TestClassifyIndexFailureFallsBackToTableScan(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})

	idx := newFakeIndex()
	idx.searchErr = errors.New("index unavailable")
	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceWithIndex(db, newFakeStorage(), emb, idx)

	result, err := svc.Classify(context.Background(), "query.jpg", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Matches[0].ClassName != "hammer" {
		t.Errorf("best match = %+v, want hammer from the relational scan", result.Matches[0])
	}
}

func TestClassifyUploadsQueryImage(t *testing.T) {
	db := newTestDB(t)
	seedClass(t, db, "tools", "c1", "hammer", domain.Vector{1, 0, 0})

	st := newFakeStorage()
	emb := &fakeEmbedder{
		functions: []string{"embed_image"},
		imageVec:  domain.Vector{1, 0, 0},
	}
	svc := newClassifyServiceForTest(db, st, emb)

	result, err := svc.Classify(context.Background(), "snapshot.PNG", []byte("img"), "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	data, ok := st.objects[result.QueryKey]
	if !ok {
		t.Fatalf("query image not uploaded under %q", result.QueryKey)
	}
	if string(data) != "img" {
		t.Errorf("uploaded bytes = %q", data)
	}
}
