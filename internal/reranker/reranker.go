// Package reranker scores (query, chunk) pairs with a cross-encoder: the
// model sees both texts together instead of comparing independently
// embedded vectors.
package reranker

import "context"

// Candidate is one chunk text to score against the query.
type Candidate struct {
	ChunkID string
	Text    string
}

// Result carries the fused relevance score for one candidate. Scores live
// on a model-defined scale and are only comparable within one model version.
type Result struct {
	ChunkID string
	Score   float64
}

// Reranker computes joint query/chunk relevance. For a fixed model version
// identical pairs always produce identical scores, and the output ordering
// is independent of the input candidate order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
	ModelName() string
}
