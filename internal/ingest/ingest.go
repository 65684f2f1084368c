// Package ingest turns parsed documents into indexed, queryable chunks.
// Ingestion is atomic per document: the previous version of a file stays
// queryable until the new version is fully indexed, and a failed ingestion
// leaves no partial state behind.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"knowledge-rag/internal/chunker"
	"knowledge-rag/internal/db"
	"knowledge-rag/internal/embedding"
	"knowledge-rag/internal/helper"
	"knowledge-rag/internal/models"
	"knowledge-rag/internal/parser"
	"knowledge-rag/internal/vectorindex"
)

type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  *embedding.Service
	index     vectorindex.Index
	store     *bun.DB
	notesPath string
}

func NewPipeline(ch *chunker.Chunker, embedder *embedding.Service, index vectorindex.Index, store *bun.DB, notesPath string) *Pipeline {
	return &Pipeline{
		chunker:   ch,
		embedder:  embedder,
		index:     index,
		store:     store,
		notesPath: notesPath,
	}
}

// Result summarizes one ingestion.
type Result struct {
	DocumentID string
	Filename   string
	Chunks     int
	Skipped    int
	Unchanged  bool
}

// IngestFile parses and ingests a document from disk.
func (p *Pipeline) IngestFile(ctx context.Context, filePath string) (*Result, error) {
	parsed, err := parser.Parse(filePath)
	if err != nil {
		return nil, &models.IngestionError{Filename: filepath.Base(filePath), Err: err}
	}
	return p.Ingest(ctx, parsed)
}

// Ingest chunks, embeds, and indexes a parsed document, replacing any prior
// version of the same filename. Re-ingesting unchanged content is a no-op.
func (p *Pipeline) Ingest(ctx context.Context, parsed *models.ParsedDocument) (*Result, error) {
	contentHash := helper.ContentHash(parsed.Text)

	previous, err := db.FindDocumentByFilename(ctx, p.store, parsed.Filename)
	if err != nil {
		return nil, p.fail(parsed, fmt.Errorf("looking up previous version: %w", err))
	}
	if previous != nil && previous.ContentHash == contentHash {
		log.Info().Str("file", parsed.Filename).Msg("Content unchanged, skipping ingestion")
		return &Result{DocumentID: previous.ID, Filename: parsed.Filename, Unchanged: true}, nil
	}

	chunks, err := p.chunker.Chunk(*parsed)
	if err != nil {
		return nil, p.fail(parsed, fmt.Errorf("chunking: %w", err))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, p.fail(parsed, fmt.Errorf("embedding chunks: %w", err))
	}

	doc := models.Document{
		ID:          parsed.ID,
		Filename:    parsed.Filename,
		SourceType:  parsed.SourceType,
		ContentHash: contentHash,
		ManualInput: parsed.Filename == models.ManualNotesFilename,
		IngestedAt:  parsed.IngestedAt,
	}

	// Permanently unembeddable chunks are skipped, not fatal.
	var entries []vectorindex.Entry
	var kept []models.Chunk
	for i, c := range chunks {
		if vectors[i] == nil {
			log.Warn().Str("chunk", c.ID).Msg("Chunk could not be embedded, skipping")
			continue
		}
		kept = append(kept, c)
		entries = append(entries, vectorindex.Entry{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Text:       c.Text,
			Vector:     vectors[i],
			Metadata:   vectorindex.MetadataForChunk(c, doc),
		})
	}
	if len(chunks) > 0 && len(entries) == 0 {
		return nil, p.fail(parsed, fmt.Errorf("no chunk could be embedded"))
	}

	if err := db.StoreDocument(ctx, p.store, doc, kept); err != nil {
		return nil, p.fail(parsed, fmt.Errorf("storing metadata: %w", err))
	}

	if err := p.index.Upsert(ctx, entries); err != nil {
		// Roll back the metadata record so no half-ingested document exists.
		if dbErr := db.DeleteDocument(ctx, p.store, doc.ID); dbErr != nil {
			log.Error().Err(dbErr).Str("document", doc.ID).Msg("Rollback of metadata failed")
		}
		if idxErr := p.index.DeleteByDocument(ctx, doc.ID); idxErr != nil {
			log.Error().Err(idxErr).Str("document", doc.ID).Msg("Rollback of index entries failed")
		}
		return nil, p.fail(parsed, fmt.Errorf("indexing chunks: %w", err))
	}

	// The new version is live; retire the previous one.
	if previous != nil && previous.ID != doc.ID {
		if err := p.index.DeleteByDocument(ctx, previous.ID); err != nil {
			log.Error().Err(err).Str("document", previous.ID).Msg("Failed to drop superseded index entries")
		}
		if err := db.DeleteDocument(ctx, p.store, previous.ID); err != nil {
			log.Error().Err(err).Str("document", previous.ID).Msg("Failed to drop superseded metadata")
		}
	}

	log.Info().
		Str("file", doc.Filename).
		Str("document", doc.ID).
		Int("chunks", len(kept)).
		Int("skipped", len(chunks)-len(kept)).
		Msg("Document ingested")

	return &Result{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Chunks:     len(kept),
		Skipped:    len(chunks) - len(kept),
	}, nil
}

// AddNote appends a user-provided fact to the consolidated manual notes
// document and re-ingests it, so stated facts become retrievable alongside
// uploaded files.
func (p *Pipeline) AddNote(ctx context.Context, note string) (*Result, error) {
	if err := helper.CreateFolder(filepath.Dir(p.notesPath)); err != nil {
		return nil, err
	}

	entry := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), note)
	f, err := os.OpenFile(p.notesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening notes file: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return nil, fmt.Errorf("appending note: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.notesPath)
	if err != nil {
		return nil, err
	}
	parsed := parser.FromText(models.ManualNotesFilename, string(data), models.SourceText)
	return p.Ingest(ctx, parsed)
}

// DeleteDocument removes a document from both the index and the metadata
// store. Index removal goes first so no candidate can reference a document
// whose metadata is already gone.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return db.DeleteDocument(ctx, p.store, documentID)
}

func (p *Pipeline) fail(parsed *models.ParsedDocument, err error) error {
	return &models.IngestionError{DocumentID: parsed.ID, Filename: parsed.Filename, Err: err}
}
