package vectorindex

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"knowledge-rag/internal/models"
)

const compress = false

// ChromemIndex implements Index on chromem-go, persisted on disk unless
// opened in memory.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemIndex opens (or creates) the collection at dbPath. inMemory is
// for tools and tests that do not need persistence.
func NewChromemIndex(dbPath, collectionName string, inMemory bool) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	return &ChromemIndex{db: db, collection: collection}, nil
}

func (m *ChromemIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		meta := make(map[string]string, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			meta[k] = v
		}
		meta[MetaDocumentID] = e.DocumentID

		docs = append(docs, chromem.Document{
			ID:        e.ChunkID,
			Content:   e.Text,
			Metadata:  meta,
			Embedding: e.Vector,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return nil
}

func (m *ChromemIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]string{MetaDocumentID: documentID}
	if err := m.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	return nil
}

func (m *ChromemIndex) Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error) {
	// chromem rejects nResults above the collection size.
	if count := m.collection.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, models.Candidate{
			ChunkID:    r.ID,
			DocumentID: r.Metadata[MetaDocumentID],
			Similarity: float64(r.Similarity),
			Text:       r.Content,
			Metadata:   r.Metadata,
		})
	}
	return candidates, nil
}
