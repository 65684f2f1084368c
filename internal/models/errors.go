package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the retrieval core. An empty retrieval result is not
// an error and is represented by an empty slice; these errors cover the
// "something broke" side of that distinction.
var (
	// ErrEmbeddingTransient marks network or rate-limit failures from the
	// embedding backend. Callers retry these with backoff.
	ErrEmbeddingTransient = errors.New("transient embedding failure")

	// ErrEmbeddingPermanent marks a malformed or oversized input. The item
	// is skipped; the failure is never retried and never aborts a batch.
	ErrEmbeddingPermanent = errors.New("permanent embedding failure")

	// ErrIndexUnavailable indicates the vector index backend cannot be
	// reached. Surfaced to the caller, never silently downgraded to an
	// empty result.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// IngestionError reports a per-document ingestion failure. Ingestion of the
// document aborts with no partial commit.
type IngestionError struct {
	DocumentID string
	Filename   string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %s (%s): %v", e.Filename, e.DocumentID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// IsTransientEmbedding reports whether err is retryable by the embedding
// retry policy.
func IsTransientEmbedding(err error) bool {
	return errors.Is(err, ErrEmbeddingTransient)
}

// IsPermanentEmbedding reports whether err is a per-item permanent failure.
func IsPermanentEmbedding(err error) bool {
	return errors.Is(err, ErrEmbeddingPermanent)
}
