package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-rag/internal/config"
	"knowledge-rag/internal/models"
)

func testChunker() *Chunker {
	return New(&config.Default().RAG)
}

func textDoc(id, text string) models.ParsedDocument {
	return models.ParsedDocument{ID: id, SourceType: models.SourceText, Text: text}
}

func TestChunkEmptyDocument(t *testing.T) {
	chunks, err := testChunker().Chunk(textDoc("doc-1", ""))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkUnsupportedType(t *testing.T) {
	_, err := testChunker().Chunk(models.ParsedDocument{ID: "doc-1", SourceType: "epub", Text: "x"})
	require.Error(t, err)
}

func TestSlidingWindowOffsets(t *testing.T) {
	// 2400 chars with window 1000 and overlap 200 must yield exactly three
	// chunks starting at 0, 800 and 1600, the last one shorter than 1000.
	text := strings.Repeat("a", 2400)
	chunks, err := testChunker().Chunk(textDoc("doc-1", text))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 800, chunks[1].StartOffset)
	assert.Equal(t, 1600, chunks[2].StartOffset)
	assert.Len(t, chunks[0].Text, 1000)
	assert.Len(t, chunks[1].Text, 1000)
	assert.Len(t, chunks[2].Text, 800)
}

func TestSlidingWindowShortText(t *testing.T) {
	chunks, err := testChunker().Chunk(textDoc("doc-1", "short text"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SeqIndex)
}

func TestSlidingWindowReconstruction(t *testing.T) {
	// Concatenating chunk texts minus declared overlaps reproduces the
	// original text exactly.
	text := strings.Repeat("0123456789", 517)
	chunks, err := testChunker().Chunk(textDoc("doc-1", text))
	require.NoError(t, err)

	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		skip := chunks[i-1].EndOffset - ch.StartOffset
		b.WriteString(ch.Text[skip:])
	}
	assert.Equal(t, text, b.String())
}

func TestChunkingDeterministic(t *testing.T) {
	doc := textDoc("doc-1", strings.Repeat("deterministic ", 300))
	first, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	second, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkdownHeaderPaths(t *testing.T) {
	doc := models.ParsedDocument{ID: "doc-1", SourceType: models.SourceMarkdown, Text: "# A\ntext1\n## B\ntext2"}
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, []string{"A"}, chunks[0].HeaderPath)
	assert.Equal(t, []string{"A", "B"}, chunks[1].HeaderPath)
	assert.Contains(t, chunks[0].Text, "text1")
	assert.Contains(t, chunks[1].Text, "text2")
}

func TestMarkdownLeadingContent(t *testing.T) {
	doc := models.ParsedDocument{ID: "doc-1", SourceType: models.SourceMarkdown, Text: "intro paragraph\n\n# First\nbody"}
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Empty(t, chunks[0].HeaderPath)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, []string{"First"}, chunks[1].HeaderPath)
}

func TestMarkdownNoHeadings(t *testing.T) {
	doc := models.ParsedDocument{ID: "doc-1", SourceType: models.SourceMarkdown, Text: "just prose with no headings"}
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].HeaderPath)
}

func TestMarkdownCodeFenceHeadingIgnored(t *testing.T) {
	doc := models.ParsedDocument{
		ID:         "doc-1",
		SourceType: models.SourceMarkdown,
		Text:       "# Real\nbefore\n```\n# not a heading\n```\nafter",
	}
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Real"}, chunks[0].HeaderPath)
}

func TestMarkdownDeepHeadingsStayInside(t *testing.T) {
	doc := models.ParsedDocument{
		ID:         "doc-1",
		SourceType: models.SourceMarkdown,
		Text:       "# Top\nbody\n### Sub\nmore",
	}
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "### Sub")
}

func TestMarkdownOversizedSectionRetainsPath(t *testing.T) {
	cfg := config.Default().RAG
	cfg.MaxPageSize = 500
	cfg.SlidingWindowSize = 200
	cfg.SlidingWindowOverlap = 40
	c := New(&cfg)

	doc := models.ParsedDocument{
		ID:         "doc-1",
		SourceType: models.SourceMarkdown,
		Text:       "# Big\n" + strings.Repeat("x", 900),
	}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, []string{"Big"}, ch.HeaderPath)
		assert.LessOrEqual(t, len(ch.Text), 200)
	}
}

func pageDoc(id string, pages ...string) models.ParsedDocument {
	doc := models.ParsedDocument{ID: id, SourceType: models.SourcePDF}
	for i, p := range pages {
		doc.Pages = append(doc.Pages, models.Page{Number: i + 1, Text: p})
	}
	doc.Text = strings.Join(pages, "\n")
	return doc
}

func TestPageChunkingOnePerPage(t *testing.T) {
	doc := pageDoc("doc-1", strings.Repeat("a", 300), strings.Repeat("b", 400))
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
	assert.Equal(t, 2, chunks[1].PageStart)
	assert.Equal(t, strings.Repeat("b", 400), chunks[1].Text)
}

func TestPageForwardMerge(t *testing.T) {
	// A short page merges into the following page and carries a page range.
	doc := pageDoc("doc-1", "tiny", strings.Repeat("b", 400))
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[0].PageEnd)
	assert.Equal(t, "tiny\n"+strings.Repeat("b", 400), chunks[0].Text)
}

func TestPageTrailingShortMergesBackward(t *testing.T) {
	doc := pageDoc("doc-1", strings.Repeat("a", 400), "tiny")
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[0].PageEnd)
	assert.Equal(t, strings.Repeat("a", 400)+"\ntiny", chunks[0].Text)
}

func TestPageOversizedBisected(t *testing.T) {
	cfg := config.Default().RAG
	cfg.MaxPageSize = 1000
	cfg.SlidingWindowOverlap = 100
	c := New(&cfg)

	doc := pageDoc("doc-1", strings.Repeat("x", 2500))
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 1000)
		assert.Equal(t, 1, ch.PageStart)
		assert.Equal(t, 1, ch.PageEnd)
	}

	// Pieces cover the unit without gaps: each piece starts at or before
	// the previous piece's end.
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset)
	}
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 2500, chunks[len(chunks)-1].EndOffset)
}

func TestPageCoverageWithoutGaps(t *testing.T) {
	doc := pageDoc("doc-1",
		strings.Repeat("a", 150),
		"short",
		strings.Repeat("c", 9000),
		strings.Repeat("d", 200),
	)
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(doc.Text), chunks[len(chunks)-1].EndOffset)
	for i := 1; i < len(chunks); i++ {
		// Either contiguous or overlapping, never a gap wider than the
		// page join newline.
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset+1)
		assert.Equal(t, i, chunks[i].SeqIndex)
	}
}

func TestChunkIDsDeterministic(t *testing.T) {
	doc := textDoc("doc-9", strings.Repeat("z", 1500))
	chunks, err := testChunker().Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "doc-9-0", chunks[0].ID)
	assert.Equal(t, "doc-9-1", chunks[1].ID)
}
