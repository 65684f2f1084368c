package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/helper"
	"knowledge-rag/internal/models"
)

// maxEmbedChars caps a single embedding input. Longer inputs are a
// permanent, per-item failure.
const maxEmbedChars = 16000

// Service wraps an embedding backend with a content-hash cache and a retry
// policy. Embeddings are deterministic for fixed input and model version, so
// cache hits are indistinguishable from recomputation except in latency.
type Service struct {
	backend embeddings.Embedder
	model   string
	cache   *Cache
	retry   RetryPolicy
}

// NewService builds a Service around any langchaingo embedder.
func NewService(backend embeddings.Embedder, model string, cacheSize int, retry RetryPolicy) *Service {
	return &Service{
		backend: backend,
		model:   model,
		cache:   NewCache(cacheSize),
		retry:   retry,
	}
}

// NewBackend constructs the configured langchaingo embedding backend.
func NewBackend(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	}
}

// Embed maps text to a vector, consulting the cache first. Transient backend
// failures are retried per the policy; a too-large input fails permanently.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateInput(text); err != nil {
		return nil, err
	}

	key := s.cacheKey(text)
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}

	var vec []float32
	err := s.retry.Do(ctx, func() error {
		var err error
		vec, err = s.backend.EmbedQuery(ctx, text)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts element-wise, semantically identical to repeated
// Embed calls. A permanently failed item yields a nil vector at its index
// and is reported without aborting the rest of the batch; only batch-level
// transient exhaustion returns an error.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	// Partition into cache hits, per-item permanent failures, and texts
	// that still need the backend.
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if err := validateInput(text); err != nil {
			log.Warn().Err(err).Int("item", i).Msg("Skipping unembeddable batch item")
			continue
		}
		if vec, ok := s.cache.Get(s.cacheKey(text)); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	var fresh [][]float32
	err := s.retry.Do(ctx, func() error {
		var err error
		fresh, err = s.backend.EmbedDocuments(ctx, missing)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("%w: backend returned %d vectors for %d inputs",
			models.ErrEmbeddingPermanent, len(fresh), len(missing))
	}

	for j, vec := range fresh {
		i := missingIdx[j]
		vectors[i] = vec
		s.cache.Put(s.cacheKey(texts[i]), vec)
	}
	return vectors, nil
}

// InvalidateText drops the cached vector for a text whose chunk changed.
func (s *Service) InvalidateText(text string) {
	s.cache.Invalidate(s.cacheKey(text))
}

// CacheLen reports the number of cached vectors.
func (s *Service) CacheLen() int { return s.cache.Len() }

func (s *Service) cacheKey(text string) string {
	return helper.ContentHash(s.model + "\x00" + text)
}

func validateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty input", models.ErrEmbeddingPermanent)
	}
	if len(text) > maxEmbedChars {
		return fmt.Errorf("%w: input of %d chars exceeds limit %d",
			models.ErrEmbeddingPermanent, len(text), maxEmbedChars)
	}
	return nil
}
