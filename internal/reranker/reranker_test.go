package reranker

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-rag/internal/config"
)

// rerankServer scores each document by shared-word count with the query,
// mimicking a cross-encoder deterministically.
func rerankServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		queryWords := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(req.Query)) {
			queryWords[w] = true
		}

		type result struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}
		var results []result
		for i, doc := range req.Documents {
			score := 0.0
			for _, w := range strings.Fields(strings.ToLower(doc)) {
				if queryWords[w] {
					score++
				}
			}
			results = append(results, result{Index: i, RelevanceScore: score})
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func newTestReranker(t *testing.T, url string) *HTTPReranker {
	t.Helper()
	r, err := NewHTTPReranker(&config.RerankerConfig{
		BaseURL:        url,
		Model:          "test-cross-encoder",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return r
}

func TestRerankOrdersByFusedScore(t *testing.T) {
	srv := rerankServer(t)
	defer srv.Close()
	r := newTestReranker(t, srv.URL)

	results, err := r.Rerank(context.Background(), "gophers love concurrency", []Candidate{
		{ChunkID: "c1", Text: "cats sleep all day"},
		{ChunkID: "c2", Text: "gophers love concurrency and channels"},
		{ChunkID: "c3", Text: "gophers dig tunnels"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "c2", results[0].ChunkID)
	assert.Equal(t, "c3", results[1].ChunkID)
	assert.Equal(t, "c1", results[2].ChunkID)
}

func TestRerankOrderIndependentOfInput(t *testing.T) {
	srv := rerankServer(t)
	defer srv.Close()
	r := newTestReranker(t, srv.URL)

	candidates := []Candidate{
		{ChunkID: "c1", Text: "alpha beta"},
		{ChunkID: "c2", Text: "retrieval pipelines rank passages"},
		{ChunkID: "c3", Text: "rank passages"},
		{ChunkID: "c4", Text: "unrelated text entirely"},
	}

	baseline, err := r.Rerank(context.Background(), "rank retrieval passages", candidates)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := make([]Candidate, len(candidates))
		copy(shuffled, candidates)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := r.Rerank(context.Background(), "rank retrieval passages", shuffled)
		require.NoError(t, err)
		assert.Equal(t, baseline, got, "ordering must not depend on candidate input order")
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	srv := rerankServer(t)
	defer srv.Close()
	r := newTestReranker(t, srv.URL)

	results, err := r.Rerank(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r := newTestReranker(t, srv.URL)

	_, err := r.Rerank(context.Background(), "q", []Candidate{{ChunkID: "c1", Text: "t"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewHTTPRerankerValidation(t *testing.T) {
	_, err := NewHTTPReranker(&config.RerankerConfig{Model: "m"})
	require.Error(t, err)
	_, err = NewHTTPReranker(&config.RerankerConfig{BaseURL: "http://x"})
	require.Error(t, err)
}
