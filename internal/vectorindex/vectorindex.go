// Package vectorindex abstracts the similarity index behind a narrow
// upsert/query/delete interface so the retrieval core never depends on a
// concrete backend.
package vectorindex

import (
	"context"

	"knowledge-rag/internal/models"
)

// Entry is one chunk vector plus the metadata carried alongside it. The
// metadata travels back with every candidate so the read path never has to
// consult the document store mid-query.
type Entry struct {
	ChunkID    string
	DocumentID string
	Text       string
	Vector     []float32
	Metadata   map[string]string
}

// Index is the similarity index contract. Implementations must give
// read-after-write consistency for a single writer: a delete is visible to
// every subsequent query from the same caller.
type Index interface {
	// Upsert inserts or replaces entries by chunk id.
	Upsert(ctx context.Context, entries []Entry) error

	// DeleteByDocument removes every chunk belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Query returns up to k candidates ordered by descending cosine
	// similarity. An empty index yields an empty result, not an error.
	Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error)
}

// Metadata keys stored with every entry.
const (
	MetaDocumentID = "document_id"
	MetaSeqIndex   = "seq_index"
	MetaFilename   = "filename"
	MetaSourceType = "source_type"
	MetaPageStart  = "page_start"
	MetaPageEnd    = "page_end"
	MetaHeaderPath = "header_path"
	MetaIngestedAt = "ingested_at"
)
