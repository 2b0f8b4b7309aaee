package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/repository"
)

// Embedder is the embedding capability the teach and classify services
// depend on.
type Embedder interface {
	Functions(ctx context.Context) ([]string, error)
	HasImageFunction(ctx context.Context) bool
	ImageFunctionName() string
	EmbedText(ctx context.Context, text string) (domain.Vector, error)
	EmbedImage(ctx context.Context, data []byte) (domain.Vector, error)
}

// ClassIndex mirrors class embeddings into an approximate-nearest-
// neighbor store. Implementations are optional; services accept a nil
// index and fall back to relational scans.
type ClassIndex interface {
	Upsert(ctx context.Context, classID string, vector []float32, payload *repository.ClassPayload) error
	Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorSearchResult, error)
	Delete(ctx context.Context, classID string) error
}

// EmbeddingClient talks to the embedding service over HTTP. The service
// exposes named embedding functions; which ones exist varies per
// deployment, so callers probe Functions before relying on image
// embeddings.
type EmbeddingClient struct {
	client        *resty.Client
	textFunction  string
	imageFunction string
	dimensions    int
}

// EmbeddingClientConfig holds configuration for the embedding client.
type EmbeddingClientConfig struct {
	BaseURL       string
	APIKey        string
	TextFunction  string
	ImageFunction string
	Dimensions    int
	Timeout       time.Duration
}

// NewEmbeddingClient creates a new embedding client.
// Parameters:
//   - cfg: client configuration.
// Returns:
//   - *EmbeddingClient: client bound to the configured service.
func NewEmbeddingClient(cfg *EmbeddingClientConfig) *EmbeddingClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	textFn := cfg.TextFunction
	if textFn == "" {
		textFn = "embed_text"
	}
	imageFn := cfg.ImageFunction
	if imageFn == "" {
		imageFn = "embed_image"
	}

	return &EmbeddingClient{
		client:        client,
		textFunction:  textFn,
		imageFunction: imageFn,
		dimensions:    cfg.Dimensions,
	}
}

// ImageFunctionName returns the configured image embedding function name.
func (c *EmbeddingClient) ImageFunctionName() string {
	return c.imageFunction
}

type functionsResponse struct {
	Functions []string `json:"functions"`
	Detail    string   `json:"detail,omitempty"`
}

type embedRequest struct {
	Function   string `json:"function"`
	Input      string `json:"input,omitempty"`
	ImageData  string `json:"image_data,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Detail    string    `json:"detail,omitempty"`
}

// Functions lists the embedding functions the service currently exposes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []string: available function names.
//   - error: non-nil if the probe fails.
func (c *EmbeddingClient) Functions(ctx context.Context) ([]string, error) {
	var resp functionsResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get("/v1/functions")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding functions: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding service error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding service error: status %d", httpResp.StatusCode())
	}
	return resp.Functions, nil
}

// HasImageFunction probes the service for the configured image embedding
// function. Errors are treated as absence: the caller falls back to
// exact matching either way.
func (c *EmbeddingClient) HasImageFunction(ctx context.Context) bool {
	funcs, err := c.Functions(ctx)
	if err != nil {
		return false
	}
	for _, f := range funcs {
		if strings.EqualFold(f, c.imageFunction) {
			return true
		}
	}
	return false
}

// EmbedText generates an embedding for a text, normally a class name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: input text.
// Returns:
//   - domain.Vector: embedding vector.
//   - error: non-nil if the call fails.
func (c *EmbeddingClient) EmbedText(ctx context.Context, text string) (domain.Vector, error) {
	return c.embed(ctx, &embedRequest{
		Function:   c.textFunction,
		Input:      text,
		Dimensions: c.dimensions,
	})
}

// EmbedImage generates an embedding for raw image bytes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - data: image file content.
// Returns:
//   - domain.Vector: embedding vector.
//   - error: non-nil if the call fails.
func (c *EmbeddingClient) EmbedImage(ctx context.Context, data []byte) (domain.Vector, error) {
	return c.embed(ctx, &embedRequest{
		Function:   c.imageFunction,
		ImageData:  base64.StdEncoding.EncodeToString(data),
		Dimensions: c.dimensions,
	})
}

func (c *EmbeddingClient) embed(ctx context.Context, req *embedRequest) (domain.Vector, error) {
	var resp embedResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/v1/embed")
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding service: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding service error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding service error: status %d", httpResp.StatusCode())
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return domain.Vector(resp.Embedding), nil
}

// Cosine computes the cosine similarity of two vectors. Mismatched
// lengths or zero vectors score 0.
func Cosine(a, b domain.Vector) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
