// Package db is the metadata and history store: document records, chunk
// records, chat history, and enrichment suggestions. SQLite via bun.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"knowledge-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string    `bun:"id,pk"`
	Filename      string    `bun:"filename,notnull"`
	SourceType    string    `bun:"source_type,notnull"`
	ContentHash   string    `bun:"content_hash,notnull"`
	ManualInput   bool      `bun:"manual_input"`
	IngestedAt    time.Time `bun:"ingested_at,notnull"`
}

type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string `bun:"id,pk"`
	DocumentID    string `bun:"document_id,notnull"`
	SeqIndex      int    `bun:"seq_index,notnull"`
	Text          string `bun:"text,notnull"`
	PageStart     int    `bun:"page_start"`
	PageEnd       int    `bun:"page_end"`
	HeaderPath    string `bun:"header_path"`
}

type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:m"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Role          string    `bun:"role,notnull"`
	Content       string    `bun:"content,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// Enrichment records a knowledge gap surfaced by an answer, so missing
// information can be followed up on later.
type Enrichment struct {
	bun.BaseModel `bun:"table:enrichments,alias:e"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Question      string    `bun:"question,notnull"`
	MissingInfo   string    `bun:"missing_info,notnull"`
	Suggestion    string    `bun:"suggestion"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func ConnectDB(path string) (*sql.DB, error) {
	return sql.Open(sqliteshim.ShimName, path)
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func InitDB(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*Document)(nil),
		(*Chunk)(nil),
		(*ChatMessage)(nil),
		(*Enrichment)(nil),
	}
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StoreDocument persists a document record with its chunk records in one
// transaction, replacing any previous record under the same id.
func StoreDocument(ctx context.Context, db *bun.DB, doc models.Document, chunks []models.Chunk) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		record := &Document{
			ID:          doc.ID,
			Filename:    doc.Filename,
			SourceType:  string(doc.SourceType),
			ContentHash: doc.ContentHash,
			ManualInput: doc.ManualInput,
			IngestedAt:  doc.IngestedAt,
		}
		if _, err := tx.NewInsert().Model(record).On("CONFLICT (id) DO UPDATE").Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*Chunk)(nil)).Where("document_id = ?", doc.ID).Exec(ctx); err != nil {
			return err
		}

		if len(chunks) == 0 {
			return nil
		}
		records := make([]Chunk, len(chunks))
		for i, c := range chunks {
			records[i] = Chunk{
				ID:         c.ID,
				DocumentID: c.DocumentID,
				SeqIndex:   c.SeqIndex,
				Text:       c.Text,
				PageStart:  c.PageStart,
				PageEnd:    c.PageEnd,
				HeaderPath: joinPath(c.HeaderPath),
			}
		}
		_, err := tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
}

// DeleteDocument removes a document record and its chunk records together.
func DeleteDocument(ctx context.Context, db *bun.DB, documentID string) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Chunk)(nil)).Where("document_id = ?", documentID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Document)(nil)).Where("id = ?", documentID).Exec(ctx)
		return err
	})
}

// FindDocumentByFilename returns the stored record for a filename, or nil
// when the file has never been ingested.
func FindDocumentByFilename(ctx context.Context, db *bun.DB, filename string) (*Document, error) {
	var doc Document
	err := db.NewSelect().Model(&doc).Where("filename = ?", filename).Limit(1).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func ListDocuments(ctx context.Context, db *bun.DB) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().Model(&docs).Order("ingested_at DESC").Scan(ctx)
	return docs, err
}

func StoreChatMessage(ctx context.Context, db *bun.DB, role, content string) error {
	msg := &ChatMessage{Role: role, Content: content, CreatedAt: time.Now().UTC()}
	_, err := db.NewInsert().Model(msg).Exec(ctx)
	return err
}

// RecentChatMessages returns the last limit messages in chronological order.
func RecentChatMessages(ctx context.Context, db *bun.DB, limit int) ([]models.ChatMessage, error) {
	var records []ChatMessage
	err := db.NewSelect().Model(&records).Order("id DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, err
	}

	history := make([]models.ChatMessage, len(records))
	for i, r := range records {
		history[len(records)-1-i] = models.ChatMessage{Role: r.Role, Content: r.Content}
	}
	return history, nil
}

// StoreEnrichments records the knowledge gaps from one answered question.
func StoreEnrichments(ctx context.Context, db *bun.DB, question string, answer models.Answer) error {
	if len(answer.MissingInfo) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]Enrichment, 0, len(answer.MissingInfo))
	for i, missing := range answer.MissingInfo {
		suggestion := ""
		if i < len(answer.EnrichmentSuggestions) {
			suggestion = answer.EnrichmentSuggestions[i]
		}
		records = append(records, Enrichment{
			Question:    question,
			MissingInfo: missing,
			Suggestion:  suggestion,
			CreatedAt:   now,
		})
	}
	_, err := db.NewInsert().Model(&records).Exec(ctx)
	return err
}

func joinPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	out := path[0]
	for _, p := range path[1:] {
		out += " > " + p
	}
	return out
}
