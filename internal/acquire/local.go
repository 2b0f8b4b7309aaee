package acquire

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// LocalAcquirer copies class images from a directory on disk. Useful
// for air-gapped deployments and for seeding from curated sets: the
// configured directory is read as-is, holding the images for the one
// class being taught.
type LocalAcquirer struct {
	root string
}

// NewLocalAcquirer creates a new LocalAcquirer reading from dir.
func NewLocalAcquirer(dir string) *LocalAcquirer {
	return &LocalAcquirer{root: dir}
}

// Acquire copies up to count valid images from the configured directory
// into destDir. The query is ignored; the directory itself names the
// class.
// Parameters:
//   - ctx: context for cancellation; checked between files.
//   - query: unused, kept for the Acquirer interface.
//   - count: number of images requested.
//   - destDir: existing local directory to write files into.
// Returns:
//   - int: number of valid images copied.
//   - error: non-nil if the source directory cannot be read.
func (a *LocalAcquirer) Acquire(ctx context.Context, query string, count int, destDir string) (int, error) {
	srcDir := a.root
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read source dir %s: %w", srcDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	copied := 0
	for _, name := range names {
		if copied >= count {
			break
		}
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		src := filepath.Join(srcDir, name)
		if !ValidateImage(src) {
			continue
		}
		if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
			return copied, err
		}
		copied++
	}

	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
