package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"knowledge-rag/internal/models"
)

var mdParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// sectionBoundary marks the start of a markdown section at a level 1 or 2
// heading line.
type sectionBoundary struct {
	Offset int
	Level  int
	Title  string
}

// chunkMarkdown splits at # and ## heading boundaries. Each section becomes
// one chunk bound to its header path; oversized sections fall back to the
// sliding-window policy with the header path retained. Parsing the AST
// instead of scanning lines keeps headings inside code fences from acting as
// boundaries.
func (c *Chunker) chunkMarkdown(doc models.ParsedDocument) ([]models.Chunk, error) {
	src := []byte(doc.Text)
	root := mdParser.Parser().Parse(text.NewReader(src))

	var bounds []sectionBoundary
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > 2 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		lineStart := seg.Start
		for lineStart > 0 && src[lineStart-1] != '\n' {
			lineStart--
		}
		bounds = append(bounds, sectionBoundary{
			Offset: lineStart,
			Level:  h.Level,
			Title:  headingTitle(doc.Text[lineStart:seg.Stop]),
		})
	}

	var chunks []models.Chunk
	seq := 0

	emit := func(s span, path []string) {
		for _, w := range c.sectionSpans(s) {
			chunks = append(chunks, models.Chunk{
				ID:          chunkID(doc.ID, seq),
				DocumentID:  doc.ID,
				SeqIndex:    seq,
				Text:        doc.Text[w.Start:w.End],
				StartOffset: w.Start,
				EndOffset:   w.End,
				HeaderPath:  path,
			})
			seq++
		}
	}

	// Headerless leading content gets an empty header path.
	if len(bounds) == 0 {
		emit(span{Start: 0, End: len(doc.Text)}, nil)
		return chunks, nil
	}
	if bounds[0].Offset > 0 {
		emit(span{Start: 0, End: bounds[0].Offset}, nil)
	}

	var h1 string
	for i, b := range bounds {
		end := len(doc.Text)
		if i+1 < len(bounds) {
			end = bounds[i+1].Offset
		}

		var path []string
		switch b.Level {
		case 1:
			h1 = b.Title
			path = []string{b.Title}
		default:
			if h1 != "" {
				path = []string{h1, b.Title}
			} else {
				path = []string{b.Title}
			}
		}
		emit(span{Start: b.Offset, End: end}, path)
	}
	return chunks, nil
}

// sectionSpans keeps a section whole unless it exceeds the page size cap, in
// which case the sliding-window policy takes over.
func (c *Chunker) sectionSpans(s span) []span {
	if s.len() <= c.cfg.MaxPageSize {
		return []span{s}
	}
	return windowSpans(s.Start, s.End, c.cfg.SlidingWindowSize, c.cfg.SlidingWindowOverlap)
}

// headingTitle strips ATX markers and trailing hashes from a heading line.
func headingTitle(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#")
	line = strings.TrimRight(strings.TrimSpace(line), "#")
	return strings.TrimSpace(line)
}
