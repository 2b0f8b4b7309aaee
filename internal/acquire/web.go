package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/hackphs/cortexvision/internal/logger"
)

const defaultSearchEndpoint = "https://api.bing.microsoft.com/v7.0/images/search"

// WebConfig holds configuration for the web image search provider.
type WebConfig struct {
	BaseURL string // search endpoint; empty uses the Bing image search API
	APIKey  string
	Timeout time.Duration
}

// WebAcquirer fetches class images from a web image search API.
type WebAcquirer struct {
	client   *resty.Client
	endpoint string
}

// NewWebAcquirer creates a new WebAcquirer.
// Parameters:
//   - cfg: provider configuration.
// Returns:
//   - *WebAcquirer: acquirer backed by the configured search endpoint.
func NewWebAcquirer(cfg *WebConfig) *WebAcquirer {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetHeader("Ocp-Apim-Subscription-Key", cfg.APIKey)

	return &WebAcquirer{
		client:   client,
		endpoint: endpoint,
	}
}

type imageSearchResponse struct {
	Value []struct {
		ContentURL     string `json:"contentUrl"`
		EncodingFormat string `json:"encodingFormat"`
	} `json:"value"`
}

// Acquire searches for images matching query and downloads up to count of
// them into destDir. Downloads that fail or do not decode as images are
// skipped, so fewer than count files may be written.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: search term.
//   - count: number of images requested.
//   - destDir: existing local directory to write files into.
// Returns:
//   - int: number of valid images written.
//   - error: non-nil if the search call fails.
func (a *WebAcquirer) Acquire(ctx context.Context, query string, count int, destDir string) (int, error) {
	var result imageSearchResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     query,
			"count": fmt.Sprintf("%d", count*2), // overfetch to survive dead links
		}).
		SetResult(&result).
		Get(a.endpoint)
	if err != nil {
		return 0, fmt.Errorf("image search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("image search failed: status %d", resp.StatusCode())
	}

	written := 0
	for _, item := range result.Value {
		if written >= count {
			break
		}
		if item.ContentURL == "" {
			continue
		}

		name := uuid.New().String() + extensionFor(item.ContentURL, item.EncodingFormat)
		path := filepath.Join(destDir, name)

		if err := a.download(ctx, item.ContentURL, path); err != nil {
			logger.CtxWarn(ctx, "download skipped for %s: %v", item.ContentURL, err)
			continue
		}
		if !ValidateImage(path) {
			logger.CtxWarn(ctx, "discarding undecodable download %s", name)
			os.Remove(path)
			continue
		}
		written++
	}

	return written, nil
}

// download fetches a single URL to a local file.
func (a *WebAcquirer) download(ctx context.Context, url, path string) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetOutput(path).
		Get(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		os.Remove(path)
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

// extensionFor picks a file extension from the reported format, falling
// back to the URL and then to .jpg.
func extensionFor(url, format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	}

	lower := strings.ToLower(url)
	if idx := strings.IndexAny(lower, "?#"); idx != -1 {
		lower = lower[:idx]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			if ext == ".jpeg" {
				return ".jpg"
			}
			return ext
		}
	}
	return ".jpg"
}
