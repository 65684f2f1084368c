package chunker

import (
	"fmt"

	"knowledge-rag/internal/models"
)

// pageUnit is a candidate chunk covering one or more whole pages. Start/End
// are offsets into the document text (pages joined by a single newline).
type pageUnit struct {
	span
	PageStart int
	PageEnd   int
}

// chunkPages applies the page-based policy for pdf and docx: one unit per
// physical page, short pages merged into a neighbour, oversized units
// recursively bisected into overlapping windows. Page range metadata
// survives both merging and splitting.
func (c *Chunker) chunkPages(doc models.ParsedDocument) ([]models.Chunk, error) {
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("page-based document %s has no pages", doc.ID)
	}

	units := c.mergeShortPages(doc)

	var chunks []models.Chunk
	seq := 0
	for _, u := range units {
		for _, s := range c.bisect(u.span) {
			chunks = append(chunks, models.Chunk{
				ID:          chunkID(doc.ID, seq),
				DocumentID:  doc.ID,
				SeqIndex:    seq,
				Text:        doc.Text[s.Start:s.End],
				StartOffset: s.Start,
				EndOffset:   s.End,
				PageStart:   u.PageStart,
				PageEnd:     u.PageEnd,
			})
			seq++
		}
	}
	return chunks, nil
}

// mergeShortPages walks pages in order, folding any page shorter than the
// minimum size into the following page (forward merge). A short trailing
// page merges backward into the previous unit instead. Merged units stay
// contiguous in the document text, so coverage has no gaps.
func (c *Chunker) mergeShortPages(doc models.ParsedDocument) []pageUnit {
	var units []pageUnit
	var pending *pageUnit

	offset := 0
	for i, p := range doc.Pages {
		u := pageUnit{
			span:      span{Start: offset, End: offset + len(p.Text)},
			PageStart: p.Number,
			PageEnd:   p.Number,
		}
		// +1 for the newline joining pages.
		offset = u.End + 1

		if pending != nil {
			u.Start = pending.Start
			u.PageStart = pending.PageStart
			pending = nil
		}

		if u.len() >= c.cfg.MinPageSize {
			units = append(units, u)
			continue
		}

		if i < len(doc.Pages)-1 {
			// Forward merge: extend through the joining newline into the
			// next page.
			u.End++
			pending = &u
		} else if n := len(units); n > 0 {
			// Trailing short page with nothing ahead of it: merge backward.
			units[n-1].End = u.End
			units[n-1].PageEnd = u.PageEnd
		} else {
			// The whole document is below the threshold; keep it anyway so
			// coverage stays complete.
			units = append(units, u)
		}
	}
	return units
}

// bisect recursively halves a span until every piece fits under the page
// size cap. The left half of each cut extends past the midpoint by the
// configured overlap so sentences straddling the cut survive in one piece.
func (c *Chunker) bisect(s span) []span {
	max := c.cfg.MaxPageSize
	overlap := c.cfg.SlidingWindowOverlap
	if overlap >= max/2 {
		overlap = max / 4
	}

	var out []span
	var rec func(s span)
	rec = func(s span) {
		if s.len() <= max {
			out = append(out, s)
			return
		}
		mid := s.Start + s.len()/2
		leftEnd := mid + overlap
		if leftEnd > s.End {
			leftEnd = s.End
		}
		rec(span{Start: s.Start, End: leftEnd})
		rec(span{Start: mid, End: s.End})
	}
	rec(s)
	return out
}
