package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-rag/internal/models"
)

// fakeBackend is a deterministic embeddings.Embedder that counts calls and
// can be primed to fail.
type fakeBackend struct {
	queryCalls int
	batchCalls int
	failures   []error
}

func (f *fakeBackend) nextFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeBackend) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	return fakeVector(text), nil
}

func (f *fakeBackend) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fakeVector(t)
	}
	return out, nil
}

func fakeVector(text string) []float32 {
	return []float32{float32(len(text)), float32(text[0])}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Retryable:       models.IsTransientEmbedding,
	}
}

func TestEmbedCachesByContent(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))
	ctx := context.Background()

	first, err := svc.Embed(ctx, "hello world")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.queryCalls, "second call must hit the cache")
}

func TestEmbedRetriesTransient(t *testing.T) {
	backend := &fakeBackend{failures: []error{errors.New("429 rate limit exceeded")}}
	svc := NewService(backend, "test-model", 16, fastPolicy(3))

	vec, err := svc.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.NotNil(t, vec)
	assert.Equal(t, 2, backend.queryCalls)
}

func TestEmbedTransientExhaustion(t *testing.T) {
	transient := errors.New("connection refused")
	backend := &fakeBackend{failures: []error{transient, transient, transient}}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))

	_, err := svc.Embed(context.Background(), "never works")
	require.Error(t, err)
	assert.True(t, models.IsTransientEmbedding(err))
	assert.Equal(t, 2, backend.queryCalls)
}

func TestEmbedPermanentNotRetried(t *testing.T) {
	backend := &fakeBackend{failures: []error{errors.New("invalid input shape")}}
	svc := NewService(backend, "test-model", 16, fastPolicy(5))

	_, err := svc.Embed(context.Background(), "bad input")
	require.Error(t, err)
	assert.True(t, models.IsPermanentEmbedding(err))
	assert.Equal(t, 1, backend.queryCalls, "permanent failures must not be retried")
}

func TestEmbedOversizedInputPermanent(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))

	_, err := svc.Embed(context.Background(), strings.Repeat("x", maxEmbedChars+1))
	require.Error(t, err)
	assert.True(t, models.IsPermanentEmbedding(err))
	assert.Zero(t, backend.queryCalls)
}

func TestEmbedBatchMatchesSingleCalls(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := svc.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := NewService(&fakeBackend{}, "test-model", 16, fastPolicy(2)).Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestEmbedBatchSkipsPermanentItem(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))

	texts := []string{"fine", strings.Repeat("x", maxEmbedChars+1), "also fine"}
	vectors, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err, "a permanent item must not abort the batch")
	require.Len(t, vectors, 3)

	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestEmbedBatchUsesCache(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))
	ctx := context.Background()

	_, err := svc.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	_, err = svc.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.batchCalls, "fully cached batch must not reach the backend")
}

func TestInvalidateText(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, "test-model", 16, fastPolicy(2))
	ctx := context.Background()

	_, err := svc.Embed(ctx, "changing text")
	require.NoError(t, err)
	svc.InvalidateText("changing text")

	_, err = svc.Embed(ctx, "changing text")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.queryCalls)
}

func TestCacheEviction(t *testing.T) {
	cache := NewCache(2)
	cache.Put("a", []float32{1})
	cache.Put("b", []float32{2})
	cache.Put("c", []float32{3})

	_, okA := cache.Get("a")
	_, okC := cache.Get("c")
	assert.False(t, okA, "oldest entry evicted")
	assert.True(t, okC)
	assert.Equal(t, 2, cache.Len())
}
