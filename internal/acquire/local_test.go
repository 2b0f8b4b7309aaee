package acquire

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestLocalAcquirerReadsDirectoryVerbatim(t *testing.T) {
	src := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"))
	writeTestPNG(t, filepath.Join(src, "b.png"))
	writeTestPNG(t, filepath.Join(src, "c.png"))
	// Non-image files are skipped, not copied
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dest := t.TempDir()
	// The directory is the class source as-is; no per-query subdirectory
	// is appended
	n, err := NewLocalAcquirer(src).Acquire(context.Background(), "st bernard", 2, dest)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if n != 2 {
		t.Errorf("copied = %d, want 2", n)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("dest files = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if !ValidateImage(filepath.Join(dest, e.Name())) {
			t.Errorf("copied file %s does not decode", e.Name())
		}
	}
}

func TestLocalAcquirerMissingDirectory(t *testing.T) {
	dest := t.TempDir()
	_, err := NewLocalAcquirer(filepath.Join(t.TempDir(), "nope")).Acquire(context.Background(), "anything", 2, dest)
	if err == nil {
		t.Fatal("expected error for missing source directory")
	}
}
