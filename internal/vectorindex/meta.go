package vectorindex

import (
	"encoding/json"
	"strconv"

	"knowledge-rag/internal/models"
)

// MetadataForChunk flattens chunk and document attributes into the string
// metadata stored with each vector, so candidates carry enough provenance
// for the whole read path.
func MetadataForChunk(chunk models.Chunk, doc models.Document) map[string]string {
	meta := map[string]string{
		MetaDocumentID: doc.ID,
		MetaSeqIndex:   strconv.Itoa(chunk.SeqIndex),
		MetaFilename:   doc.Filename,
		MetaSourceType: string(doc.SourceType),
		MetaIngestedAt: strconv.FormatInt(doc.IngestedAt.Unix(), 10),
	}
	if chunk.PageStart > 0 {
		meta[MetaPageStart] = strconv.Itoa(chunk.PageStart)
		meta[MetaPageEnd] = strconv.Itoa(chunk.PageEnd)
	}
	if len(chunk.HeaderPath) > 0 {
		if encoded, err := json.Marshal(chunk.HeaderPath); err == nil {
			meta[MetaHeaderPath] = string(encoded)
		}
	}
	return meta
}

// PassageFromCandidate rebuilds a RankedPassage skeleton from candidate
// metadata; the caller fills in the fused score.
func PassageFromCandidate(c models.Candidate) models.RankedPassage {
	p := models.RankedPassage{
		ChunkID:    c.ChunkID,
		DocumentID: c.DocumentID,
		Filename:   c.Metadata[MetaFilename],
		Text:       c.Text,
		Similarity: c.Similarity,
	}
	if raw, ok := c.Metadata[MetaPageStart]; ok {
		p.PageStart, _ = strconv.Atoi(raw)
	}
	if raw, ok := c.Metadata[MetaPageEnd]; ok {
		p.PageEnd, _ = strconv.Atoi(raw)
	}
	if raw, ok := c.Metadata[MetaHeaderPath]; ok {
		var path []string
		if err := json.Unmarshal([]byte(raw), &path); err == nil {
			p.HeaderPath = path
		}
	}
	return p
}
