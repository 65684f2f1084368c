package llmservice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"knowledge-rag/internal/models"
)

func TestFormatContextGroupsByDocument(t *testing.T) {
	out := formatContext([]models.RankedPassage{
		{DocumentID: "d1", Filename: "guide.pdf", Text: "First passage.", PageStart: 2, PageEnd: 2},
		{DocumentID: "d2", Filename: "notes.md", Text: "Second passage.", HeaderPath: []string{"Setup", "Auth"}},
		{DocumentID: "d1", Filename: "guide.pdf", Text: "Third passage.", PageStart: 4, PageEnd: 5},
	})

	assert.Contains(t, out, "[Document 1: guide.pdf]")
	assert.Contains(t, out, "[Document 2: notes.md]")
	assert.Contains(t, out, "(page 2) First passage.")
	assert.Contains(t, out, "(pages 4-5) Third passage.")
	assert.Contains(t, out, "(section: Setup > Auth) Second passage.")

	// Both guide.pdf passages sit under one heading.
	assert.Equal(t, 1, strings.Count(out, "guide.pdf"))
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, models.EmptyContextNotice, formatContext(nil))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
	assert.Equal(t, "no json here", extractJSON("no json here"))
}
