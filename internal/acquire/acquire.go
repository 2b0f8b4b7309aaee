package acquire

import (
	"context"
	"image"
	"os"

	// Register decoders so ValidateImage accepts the formats the
	// teach pipeline stores.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Acquirer fetches training images for a class into a local directory.
type Acquirer interface {
	// Acquire downloads up to count images matching query into destDir.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - query: search term, normally the human-readable class name.
	//   - count: number of images requested.
	//   - destDir: existing local directory to write files into.
	// Returns:
	//   - int: number of images actually written.
	//   - error: non-nil if the provider call fails outright.
	Acquire(ctx context.Context, query string, count int, destDir string) (int, error)
}

// ValidateImage reports whether the file at path decodes as a supported
// image format (jpeg, png, gif, webp). Corrupt or truncated downloads
// are rejected before they reach storage.
func ValidateImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, _, err = image.DecodeConfig(f)
	return err == nil
}
