// Package scorer aggregates per-chunk similarities into per-document
// relevance for the first retrieval stage.
package scorer

import (
	"math"
	"sort"
	"strconv"
	"time"

	"knowledge-rag/internal/models"
	"knowledge-rag/internal/vectorindex"
)

// Aggregator folds one document's candidate similarities into a single
// relevance score. The exact weighting is a tunable policy, not a fixed
// algorithm.
type Aggregator interface {
	Aggregate(scores []float64) float64
}

// WeightedCoverage blends the best chunk score with the mean, then applies a
// logarithmic bonus for the number of matching chunks. The bonus is what
// lets a document with several good chunks outrank a document carried by a
// single outlier.
type WeightedCoverage struct {
	MaxWeight     float64
	CoverageBonus float64
	CoverageCap   int
}

func (w WeightedCoverage) Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	max := scores[0]
	sum := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
		sum += s
	}
	mean := sum / float64(len(scores))
	base := w.MaxWeight*max + (1-w.MaxWeight)*mean

	n := len(scores)
	if w.CoverageCap > 0 && n > w.CoverageCap {
		n = w.CoverageCap
	}
	return base * (1 + w.CoverageBonus*math.Log(float64(n)))
}

// Scorer groups candidates by document and ranks documents by aggregated
// relevance.
type Scorer struct {
	agg       Aggregator
	minChunks int
}

// New builds a Scorer. Documents with fewer than minChunks candidates are
// dropped from the ranking.
func New(agg Aggregator, minChunks int) *Scorer {
	if minChunks < 1 {
		minChunks = 1
	}
	return &Scorer{agg: agg, minChunks: minChunks}
}

// ScoreDocuments aggregates candidates into an ordered document ranking,
// descending by score. Ties break toward the more recently ingested
// document, then by id for determinism.
func (s *Scorer) ScoreDocuments(candidates []models.Candidate) []models.DocumentScore {
	if len(candidates) == 0 {
		return nil
	}

	byDoc := make(map[string][]float64)
	ingested := make(map[string]time.Time)
	for _, c := range candidates {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c.Similarity)
		if _, seen := ingested[c.DocumentID]; !seen {
			ingested[c.DocumentID] = ingestedAt(c)
		}
	}

	scores := make([]models.DocumentScore, 0, len(byDoc))
	for docID, sims := range byDoc {
		if len(sims) < s.minChunks {
			continue
		}
		scores = append(scores, models.DocumentScore{
			DocumentID: docID,
			Score:      s.agg.Aggregate(sims),
			ChunkCount: len(sims),
			IngestedAt: ingested[docID],
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if !scores[i].IngestedAt.Equal(scores[j].IngestedAt) {
			return scores[i].IngestedAt.After(scores[j].IngestedAt)
		}
		return scores[i].DocumentID < scores[j].DocumentID
	})
	return scores
}

// TopDocuments returns the ids of the best m documents.
func TopDocuments(scores []models.DocumentScore, m int) []string {
	if m > len(scores) {
		m = len(scores)
	}
	ids := make([]string, 0, m)
	for _, s := range scores[:m] {
		ids = append(ids, s.DocumentID)
	}
	return ids
}

// ingestedAt reads the ingestion timestamp carried in index metadata.
func ingestedAt(c models.Candidate) time.Time {
	raw, ok := c.Metadata[vectorindex.MetaIngestedAt]
	if !ok {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
