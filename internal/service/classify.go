package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackphs/cortexvision/internal/domain"
	"github.com/hackphs/cortexvision/internal/logger"
	"github.com/hackphs/cortexvision/internal/repository"
	"github.com/hackphs/cortexvision/internal/storage"
)

const (
	topK = 5

	// Fixed confidences for the exact-match ladder, ordered so that a
	// stronger form of identity always outranks a weaker one.
	scoreExactPath = 1.0
	scoreExactHash = 0.98
	scoreBasename  = 0.95
)

// ClassifyService matches a query image against taught classes. The
// primary path embeds the image and ranks class embeddings by cosine
// similarity; when the embedding service has no image function, a ladder
// of exact matches against stored training images takes over.
type ClassifyService struct {
	modelRepo *repository.ModelRepository
	imageRepo *repository.ImageRepository
	embRepo   *repository.EmbeddingRepository
	storage   storage.ObjectStorage
	embedder  Embedder
	index     ClassIndex // optional, nil disables

	queryPrefix string
}

// NewClassifyService creates a new classify service.
// Parameters:
//   - modelRepo, imageRepo, embRepo: persistence layers.
//   - objectStorage: query image store.
//   - embedder: embedding service client.
//   - index: optional vector index; may be nil.
//   - queryPrefix: storage key prefix for uploaded query images.
// Returns:
//   - *ClassifyService: configured service.
func NewClassifyService(
	modelRepo *repository.ModelRepository,
	imageRepo *repository.ImageRepository,
	embRepo *repository.EmbeddingRepository,
	objectStorage storage.ObjectStorage,
	embedder Embedder,
	index ClassIndex,
	queryPrefix string,
) *ClassifyService {
	if queryPrefix == "" {
		queryPrefix = "images/queries"
	}
	return &ClassifyService{
		modelRepo:   modelRepo,
		imageRepo:   imageRepo,
		embRepo:     embRepo,
		storage:     objectStorage,
		embedder:    embedder,
		index:       index,
		queryPrefix: strings.TrimSuffix(queryPrefix, "/"),
	}
}

// ClassifyResult reports the matches for one query image.
type ClassifyResult struct {
	QueryKey string         `json:"query_key"`
	QueryURL string         `json:"query_url"`
	Mode     string         `json:"mode"` // "embedding" or "exact"
	Matches  []domain.Match `json:"matches"`
}

// Classify uploads the query image and matches it against taught
// classes.
//
// The embedding service's function list is probed on every call, so
// deployments gain the similarity path the moment an image function
// appears. Model filtering restricts candidates to classes registered
// under that model.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filename: original client file name, used by the basename tier.
//   - data: image file content.
//   - modelFilter: optional model name; empty matches all classes.
// Returns:
//   - *ClassifyResult: up to five matches ranked by score.
//   - error: NoMatchError when the ladder is exhausted,
//     EmptyCandidatesError when the filter eliminated every candidate,
//     or another pipeline failure.
func (s *ClassifyService) Classify(ctx context.Context, filename string, data []byte, modelFilter string) (*ClassifyResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty query image")
	}

	key := s.queryKey(ctx, filename)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeForName(filename)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	start := time.Now()

	if s.embedder.HasImageFunction(ctx) {
		result, err := s.classifyByEmbedding(ctx, key, data, modelFilter)
		if err != nil || result != nil {
			if result != nil {
				logger.With(logger.Fields{
					logger.FieldDurationMs: time.Since(start).Milliseconds(),
					logger.FieldCount:      len(result.Matches),
				}).Info(ctx, "classified by embedding")
			}
			return result, err
		}
		// nil result without error: no embeddings exist yet, try the ladder
	}

	result, err := s.classifyByExactMatch(ctx, key, filename, data)
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"tier_score":           result.Matches[0].Score,
	}).Info(ctx, "classified by exact match")
	return result, nil
}

// queryKey derives the storage key for a query upload from the client
// file name. Keeping the basename is what lets a re-submitted query hit
// the stored-path tier; only a name already present in storage gets a
// random prefix to avoid overwriting the earlier upload.
func (s *ClassifyService) queryKey(ctx context.Context, filename string) string {
	base := filepath.Base(filename)
	if base == "" || base == "." || base == "/" {
		base = uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	}
	key := s.queryPrefix + "/" + base
	if exists, err := s.storage.Exists(ctx, key); err == nil && exists {
		key = s.queryPrefix + "/" + uuid.New().String()[:8] + "_" + base
	}
	return key
}

// classifyByEmbedding ranks class embeddings by cosine similarity to the
// query image embedding. A nil, nil return means the embeddings table is
// empty and the caller should fall back.
func (s *ClassifyService) classifyByEmbedding(ctx context.Context, key string, data []byte, modelFilter string) (*ClassifyResult, error) {
	qvec, err := s.embedder.EmbedImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query image: %w", err)
	}

	// The vector index is unscoped by model, so filtered queries always
	// take the relational join.
	if s.index != nil && strings.TrimSpace(modelFilter) == "" {
		if matches, ok := s.searchIndex(ctx, qvec); ok {
			return &ClassifyResult{QueryKey: key, QueryURL: s.storage.GetURL(key), Mode: "embedding", Matches: matches}, nil
		}
	}

	var candidates []domain.ClassEmbedding
	if modelFilter != "" {
		candidates, err = s.embRepo.ListByModel(ctx, strings.TrimSpace(modelFilter))
	} else {
		candidates, err = s.embRepo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load class embeddings: %w", err)
	}

	if len(candidates) == 0 {
		total, err := s.embRepo.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count class embeddings: %w", err)
		}
		if total > 0 {
			return nil, &domain.EmptyCandidatesError{
				EmbeddingRows: total,
				ModelFilter:   strings.TrimSpace(modelFilter),
			}
		}
		return nil, nil // nothing taught yet, let the ladder report
	}

	matches := make([]domain.Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, domain.Match{
			ClassID:   c.ClassID,
			ClassName: c.ClassName,
			Score:     Cosine(qvec, c.TextVector),
		})
	}

	// Ties resolve to the earliest-taught class
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return classIDNum(matches[i].ClassID) < classIDNum(matches[j].ClassID)
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	return &ClassifyResult{QueryKey: key, QueryURL: s.storage.GetURL(key), Mode: "embedding", Matches: matches}, nil
}

// searchIndex queries the vector index for the nearest class embeddings.
// A false return means the caller should fall back to the relational
// scan: the index is a mirror, not the source of truth, so errors and
// empty result sets are survivable.
func (s *ClassifyService) searchIndex(ctx context.Context, qvec domain.Vector) ([]domain.Match, bool) {
	hits, err := s.index.Search(ctx, qvec, topK)
	if err != nil {
		logger.CtxWarn(ctx, "vector index search failed, falling back to table scan: %v", err)
		return nil, false
	}
	matches := make([]domain.Match, 0, len(hits))
	for _, h := range hits {
		if h.Payload == nil {
			continue
		}
		matches = append(matches, domain.Match{
			ClassID:   h.Payload.ClassID,
			ClassName: h.Payload.ClassName,
			Score:     h.Score,
		})
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches, true
}

// classifyByExactMatch walks the fallback ladder: stored path, content
// hash, then basename. Confidence is fixed per tier and monotonically
// decreasing, so the first hit is always the best available.
func (s *ClassifyService) classifyByExactMatch(ctx context.Context, key, filename string, data []byte) (*ClassifyResult, error) {
	if rec, err := s.imageRepo.FindByPath(ctx, key); err != nil {
		return nil, fmt.Errorf("path match failed: %w", err)
	} else if rec != nil {
		return s.exactResult(ctx, key, rec, scoreExactPath), nil
	}

	sum := sha256.Sum256(data)
	if rec, err := s.imageRepo.FindByHash(ctx, hex.EncodeToString(sum[:])); err != nil {
		return nil, fmt.Errorf("hash match failed: %w", err)
	} else if rec != nil {
		return s.exactResult(ctx, key, rec, scoreExactHash), nil
	}

	if base := filepath.Base(filename); base != "" && base != "." {
		if rec, err := s.imageRepo.FindByBasename(ctx, base); err != nil {
			return nil, fmt.Errorf("basename match failed: %w", err)
		} else if rec != nil {
			return s.exactResult(ctx, key, rec, scoreBasename), nil
		}
	}

	embRows, err := s.embRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count class embeddings: %w", err)
	}
	imgRows, err := s.imageRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count image metadata: %w", err)
	}
	return nil, &domain.NoMatchError{EmbeddingRows: embRows, ImageRows: imgRows}
}

// exactResult builds a single-match result from a metadata row. The
// class ID lookup is best effort; exact matches identify by class name.
func (s *ClassifyService) exactResult(ctx context.Context, key string, rec *domain.ImageRecord, score float32) *ClassifyResult {
	match := domain.Match{ClassName: rec.Caption, Score: score}
	if emb, err := s.embRepo.GetByName(ctx, rec.Caption); err == nil && emb != nil {
		match.ClassID = emb.ClassID
	}
	return &ClassifyResult{QueryKey: key, QueryURL: s.storage.GetURL(key), Mode: "exact", Matches: []domain.Match{match}}
}

// classIDNum extracts the numeric suffix of a class ID for ordering.
// Malformed IDs sort last.
func classIDNum(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "c"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// contentTypeForName guesses a content type from a file name.
func contentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
