package chunker

import "knowledge-rag/internal/models"

// windowSpans slices [start, end) into fixed-size windows with the given
// overlap. Consecutive windows advance by size-overlap and share boundary
// characters; the final window may be shorter than size, never padded.
func windowSpans(start, end, size, overlap int) []span {
	if end <= start {
		return nil
	}
	if size <= 0 {
		return []span{{Start: start, End: end}}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	var spans []span
	pos := start
	for {
		stop := pos + size
		if stop > end {
			stop = end
		}
		spans = append(spans, span{Start: pos, End: stop})
		if stop == end {
			return spans
		}
		pos += size - overlap
	}
}

// chunkText applies the plain-text policy: a fixed-size sliding window over
// the whole document.
func (c *Chunker) chunkText(doc models.ParsedDocument) ([]models.Chunk, error) {
	spans := windowSpans(0, len(doc.Text), c.cfg.SlidingWindowSize, c.cfg.SlidingWindowOverlap)

	chunks := make([]models.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, models.Chunk{
			ID:          chunkID(doc.ID, i),
			DocumentID:  doc.ID,
			SeqIndex:    i,
			Text:        doc.Text[s.Start:s.End],
			StartOffset: s.Start,
			EndOffset:   s.End,
		})
	}
	return chunks, nil
}
