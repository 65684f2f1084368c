// Package retriever sequences the two-stage retrieval pipeline: vector
// candidate generation, document-level aggregation, then cross-encoder
// re-ranking over the surviving documents' chunks.
package retriever

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/embedding"
	"knowledge-rag/internal/models"
	"knowledge-rag/internal/reranker"
	"knowledge-rag/internal/scorer"
	"knowledge-rag/internal/vectorindex"
)

// Engine is the retrieval orchestrator. All per-query state is local to
// Retrieve, so concurrent queries never interfere.
type Engine struct {
	embedder *embedding.Service
	index    vectorindex.Index
	scorer   *scorer.Scorer
	reranker reranker.Reranker
	cfg      *config.RAGConfig
}

func NewEngine(
	embedder *embedding.Service,
	index vectorindex.Index,
	docScorer *scorer.Scorer,
	rr reranker.Reranker,
	cfg *config.RAGConfig,
) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		scorer:   docScorer,
		reranker: rr,
		cfg:      cfg,
	}
}

// Retrieve answers a query with at most topK ranked passages. Zero
// candidates is a valid outcome and returns an empty sequence: the caller
// reads that as "insufficient information", not a fault. topK <= 0 falls
// back to the configured final_top_k.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]models.RankedPassage, error) {
	if topK <= 0 {
		topK = e.cfg.FinalTopK
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := e.index.Query(ctx, queryVec, e.cfg.CandidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}
	if len(candidates) == 0 {
		log.Debug().Str("query", query).Msg("No candidates from vector index")
		return []models.RankedPassage{}, nil
	}

	docScores := e.scorer.ScoreDocuments(candidates)
	topDocs := scorer.TopDocuments(docScores, e.cfg.TopDocuments)
	if len(topDocs) == 0 {
		return []models.RankedPassage{}, nil
	}

	selected := candidatesForDocuments(candidates, topDocs)
	log.Debug().
		Int("candidates", len(candidates)).
		Int("documents", len(topDocs)).
		Int("selected_chunks", len(selected)).
		Msg("First retrieval stage complete")

	fused, err := e.rerankCandidates(ctx, query, selected)
	if err != nil {
		return nil, fmt.Errorf("re-ranking: %w", err)
	}

	if topK < len(fused) {
		fused = fused[:topK]
	}
	return fused, nil
}

// candidatesForDocuments keeps the candidates belonging to the selected
// documents, preserving a deterministic order.
func candidatesForDocuments(candidates []models.Candidate, docIDs []string) []models.Candidate {
	keep := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		keep[id] = true
	}
	var selected []models.Candidate
	for _, c := range candidates {
		if keep[c.DocumentID] {
			selected = append(selected, c)
		}
	}
	return selected
}

// rerankCandidates runs the cross-encoder over the selected chunks and maps
// the fused scores back onto full passages. The re-ranker score is
// authoritative for final ordering; the document score only filtered the
// field.
func (e *Engine) rerankCandidates(ctx context.Context, query string, selected []models.Candidate) ([]models.RankedPassage, error) {
	byChunk := make(map[string]models.Candidate, len(selected))
	pairs := make([]reranker.Candidate, 0, len(selected))
	for _, c := range selected {
		byChunk[c.ChunkID] = c
		pairs = append(pairs, reranker.Candidate{ChunkID: c.ChunkID, Text: c.Text})
	}

	results, err := e.reranker.Rerank(ctx, query, pairs)
	if err != nil {
		return nil, err
	}

	passages := make([]models.RankedPassage, 0, len(results))
	for _, r := range results {
		c, ok := byChunk[r.ChunkID]
		if !ok {
			continue
		}
		p := vectorindex.PassageFromCandidate(c)
		p.Score = r.Score
		passages = append(passages, p)
	}
	return passages, nil
}
