package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the teach/classify pipelines. Callers match with
// errors.Is; diagnostic variants carry counts and match on their kind.
var (
	// ErrDuplicateClass means the (model, class) pair is already
	// registered. Checked before any acquisition or upload work.
	ErrDuplicateClass = errors.New("class already registered for model")

	// ErrAcquisitionFailed means the acquisition provider produced zero
	// images. Fatal to the teach run.
	ErrAcquisitionFailed = errors.New("image acquisition produced no files")

	// ErrUploadFailed means the storage write failed before any metadata
	// was written.
	ErrUploadFailed = errors.New("storage upload failed")

	// ErrEmbeddingUnavailable means no image-embedding function was
	// discovered on the embedding service. Non-fatal: the matcher falls
	// through to the exact-match ladder.
	ErrEmbeddingUnavailable = errors.New("no image embedding function available")
)

// NoMatchError is returned when the classification ladder is exhausted
// without a result. It carries row counts so the caller can tell an
// empty deployment from a genuine miss.
type NoMatchError struct {
	EmbeddingRows int64
	ImageRows     int64
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no embedding function and no exact match (class_embeddings=%d, image_metadata=%d)",
		e.EmbeddingRows, e.ImageRows)
}

// EmptyCandidatesError is returned when the vector path executed but the
// candidate query returned zero rows: the embeddings table is not empty,
// so the filter (or the mapping table) is the likely culprit.
type EmptyCandidatesError struct {
	EmbeddingRows int64
	ModelFilter   string
}

func (e *EmptyCandidatesError) Error() string {
	if e.ModelFilter != "" {
		return fmt.Sprintf("embeddings table has %d rows but the query filtered by model %q returned none",
			e.EmbeddingRows, e.ModelFilter)
	}
	return fmt.Sprintf("embeddings table has %d rows but the candidate query returned none", e.EmbeddingRows)
}
