package chunker

import (
	"fmt"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/models"
)

// Chunker splits a parsed document into retrievable chunks. Strategy is a
// pure function of the detected source type, so the same document and config
// always produce an identical chunk sequence.
type Chunker struct {
	cfg *config.RAGConfig
}

func New(cfg *config.RAGConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// Chunk produces the ordered chunk sequence for doc. An empty document
// yields an empty sequence, not an error. Chunks are produced all-or-none;
// any failure leaves no partial result.
func (c *Chunker) Chunk(doc models.ParsedDocument) ([]models.Chunk, error) {
	if doc.Text == "" {
		return nil, nil
	}

	switch doc.SourceType {
	case models.SourcePDF, models.SourceDOCX:
		return c.chunkPages(doc)
	case models.SourceMarkdown:
		return c.chunkMarkdown(doc)
	case models.SourceText:
		return c.chunkText(doc)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", doc.SourceType)
	}
}

// chunkID is deterministic so re-ingesting an unchanged document under the
// same id reproduces identical chunks.
func chunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s-%d", documentID, seq)
}

// span is a half-open [Start, End) character range into the document text.
type span struct {
	Start int
	End   int
}

func (s span) len() int { return s.End - s.Start }
