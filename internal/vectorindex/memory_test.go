package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(chunkID, docID string, vec []float32) Entry {
	return Entry{ChunkID: chunkID, DocumentID: docID, Text: "text " + chunkID, Vector: vec}
}

func TestMemoryQueryOrdersByCosine(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		entry("c1", "d1", []float32{1, 0}),
		entry("c2", "d1", []float32{0.9, 0.1}),
		entry("c3", "d2", []float32{0, 1}),
	}))

	got, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "c1", got[0].ChunkID)
	assert.Equal(t, "c2", got[1].ChunkID)
	assert.Equal(t, "c3", got[2].ChunkID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.Greater(t, got[1].Similarity, got[2].Similarity)
}

func TestMemoryQueryRespectsK(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		entry("c1", "d1", []float32{1, 0}),
		entry("c2", "d1", []float32{0, 1}),
	}))

	got, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryQueryEmptyIndex(t *testing.T) {
	got, err := NewMemoryIndex().Query(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryDeleteByDocumentImmediatelyVisible(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		entry("c1", "d1", []float32{1, 0}),
		entry("c2", "d1", []float32{0.8, 0.2}),
		entry("c3", "d2", []float32{0.5, 0.5}),
	}))
	require.NoError(t, idx.DeleteByDocument(ctx, "d1"))

	got, err := idx.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d2", got[0].DocumentID)
}

func TestMemoryUpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{entry("c1", "d1", []float32{1, 0})}))
	require.NoError(t, idx.Upsert(ctx, []Entry{entry("c1", "d1", []float32{0, 1})}))

	assert.Equal(t, 1, idx.Len())
	got, err := idx.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
}
