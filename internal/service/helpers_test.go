package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeStorage records uploads in memory.
type fakeStorage struct {
	objects map[string][]byte
	failDir bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) UploadDir(ctx context.Context, prefix string, localDir string) ([]string, error) {
	if f.failDir {
		return nil, fmt.Errorf("simulated upload failure")
	}
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := prefix + "/" + e.Name()
		if err := f.UploadFile(ctx, key, filepath.Join(localDir, e.Name())); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) GetURL(key string) string { return "http://storage.test/" + key }

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStorage) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }

// fakeEmbedder serves canned vectors and a configurable function list.
type fakeEmbedder struct {
	functions   []string
	textVecs    map[string]domain.Vector
	imageVec    domain.Vector
	textErr     error
	imageErr    error
	functionErr error
}

func (f *fakeEmbedder) Functions(ctx context.Context) ([]string, error) {
	if f.functionErr != nil {
		return nil, f.functionErr
	}
	return f.functions, nil
}

func (f *fakeEmbedder) HasImageFunction(ctx context.Context) bool {
	funcs, err := f.Functions(ctx)
	if err != nil {
		return false
	}
	for _, fn := range funcs {
		if strings.EqualFold(fn, f.ImageFunctionName()) {
			return true
		}
	}
	return false
}

func (f *fakeEmbedder) ImageFunctionName() string { return "embed_image" }

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) (domain.Vector, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	if v, ok := f.textVecs[text]; ok {
		return v, nil
	}
	return domain.Vector{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, data []byte) (domain.Vector, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.imageVec, nil
}

// fakeIndex records upserts and deletes and serves canned search hits.
type fakeIndex struct {
	upserts   map[string]domain.Vector
	deleted   []string
	hits      []repository.VectorSearchResult
	searchErr error
	searched  int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string]domain.Vector)}
}

func (f *fakeIndex) Upsert(ctx context.Context, classID string, vector []float32, payload *repository.ClassPayload) error {
	f.upserts[classID] = vector
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorSearchResult, error) {
	f.searched++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) Delete(ctx context.Context, classID string) error {
	f.deleted = append(f.deleted, classID)
	return nil
}

// fakeAcquirer writes n small files into the destination directory.
type fakeAcquirer struct {
	produce int
	err     error
}

func (f *fakeAcquirer) Acquire(ctx context.Context, query string, count int, destDir string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := f.produce
	if n > count {
		n = count
	}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("img_%02d.jpg", i)
		content := []byte(fmt.Sprintf("%s-%d", query, i))
		if err := os.WriteFile(filepath.Join(destDir, name), content, 0644); err != nil {
			return i, err
		}
	}
	return n, nil
}

func newTeachServiceForTest(t *testing.T, db *gorm.DB, st *fakeStorage, acq *fakeAcquirer, emb *fakeEmbedder) *TeachService {
	t.Helper()
	return newTeachServiceWithIndex(t, db, st, acq, emb, nil)
}

func newTeachServiceWithIndex(t *testing.T, db *gorm.DB, st *fakeStorage, acq *fakeAcquirer, emb *fakeEmbedder, idx ClassIndex) *TeachService {
	t.Helper()
	return NewTeachService(
		repository.NewModelRepository(db),
		repository.NewImageRepository(db),
		repository.NewEmbeddingRepository(db),
		repository.NewJobRepository(db),
		st, acq, emb, idx,
		&TeachServiceConfig{
			Prefix:         "images/trained",
			ImagesPerClass: 4,
			WorkDir:        t.TempDir(),
		},
	)
}

func newClassifyServiceForTest(db *gorm.DB, st *fakeStorage, emb *fakeEmbedder) *ClassifyService {
	return newClassifyServiceWithIndex(db, st, emb, nil)
}

func newClassifyServiceWithIndex(db *gorm.DB, st *fakeStorage, emb *fakeEmbedder, idx ClassIndex) *ClassifyService {
	return NewClassifyService(
		repository.NewModelRepository(db),
		repository.NewImageRepository(db),
		repository.NewEmbeddingRepository(db),
		st, emb, idx,
		"images/queries",
	)
}
