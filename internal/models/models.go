package models

import "time"

// SourceType identifies the document format detected at the extraction
// boundary. It drives chunking strategy selection.
type SourceType string

const (
	SourcePDF      SourceType = "pdf"
	SourceDOCX     SourceType = "docx"
	SourceText     SourceType = "plain-text"
	SourceMarkdown SourceType = "markdown"
)

// Page is one physical page (or page-like unit) of a parsed document.
type Page struct {
	Number int
	Text   string
}

// ParsedDocument is the output of the extraction layer: plain text plus a
// detected source type. Pages is populated for page-based formats only; for
// those, Text is the page texts joined by a single newline.
type ParsedDocument struct {
	ID         string
	Filename   string
	SourceType SourceType
	Text       string
	Pages      []Page
	IngestedAt time.Time
}

// Document is the stored metadata record for an ingested document. Documents
// are immutable once stored; re-ingestion happens under a new id.
type Document struct {
	ID          string
	Filename    string
	SourceType  SourceType
	ContentHash string
	ManualInput bool
	IngestedAt  time.Time
}

// Chunk is a contiguous retrievable unit of text derived from one document.
// Chunks are owned by their document and never outlive it.
type Chunk struct {
	ID         string
	DocumentID string
	SeqIndex   int
	Text       string

	// Character offsets into the parent document text, for traceability.
	StartOffset int
	EndOffset   int

	// Structural metadata. PageStart/PageEnd form an inclusive page range
	// for page-based documents (zero when not applicable). HeaderPath is
	// the ordered list of ancestor headings for markdown chunks.
	PageStart  int
	PageEnd    int
	HeaderPath []string
}

// Candidate is a chunk returned by one similarity query against the vector
// index, with its raw cosine similarity. Ephemeral, per-query.
type Candidate struct {
	ChunkID    string
	DocumentID string
	Similarity float64
	Text       string
	Metadata   map[string]string
}

// DocumentScore is a per-document relevance aggregated from that document's
// candidates for one query. Ephemeral, per-query.
type DocumentScore struct {
	DocumentID string
	Score      float64
	ChunkCount int
	IngestedAt time.Time
}

// RankedPassage is the final retrieval output unit. Score is the fused
// re-ranker score, not the original vector similarity, and is only
// comparable within a single model version.
type RankedPassage struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Text       string
	PageStart  int
	PageEnd    int
	HeaderPath []string
	Score      float64
	Similarity float64
}

// Intent classifies a user message for pipeline routing.
type Intent string

const (
	IntentInformationRequest   Intent = "information_request"
	IntentInformationProvision Intent = "information_provision"
	IntentConversational       Intent = "conversational"
)

// Answer is the structured response produced by the answer-generation layer.
type Answer struct {
	Answer                string   `json:"answer"`
	Confidence            string   `json:"confidence"`
	MissingInfo           []string `json:"missing_info"`
	EnrichmentSuggestions []string `json:"enrichment_suggestions"`
	Sources               []string `json:"sources"`
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string
	Content string
}
