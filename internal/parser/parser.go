// Package parser extracts plain text from supported document formats and
// tags each document with the source type that drives chunking. Spreadsheets
// are rendered to markdown tables so they flow through the markdown policy.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"knowledge-rag/internal/helper"
	"knowledge-rag/internal/models"
)

// Parse extracts a document from disk. The returned ParsedDocument carries a
// fresh id and ingestion timestamp; Pages is populated for page-based formats
// and Text is always the full extracted text.
func Parse(filePath string) (*models.ParsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		doc *models.ParsedDocument
		err error
	)
	switch ext {
	case ".pdf":
		doc, err = parsePDF(filePath)
	case ".docx":
		doc, err = parseDOCX(filePath)
	case ".md", ".markdown":
		doc, err = parseTextFile(filePath, models.SourceMarkdown)
	case ".txt":
		doc, err = parseTextFile(filePath, models.SourceText)
	case ".xlsx":
		doc, err = parseXLSX(filePath)
	case ".ods":
		doc, err = parseODS(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	doc.ID = helper.GenerateUUID()
	doc.Filename = filepath.Base(filePath)
	doc.IngestedAt = time.Now().UTC()
	log.Debug().
		Str("file", doc.Filename).
		Str("source_type", string(doc.SourceType)).
		Int("pages", len(doc.Pages)).
		Int("chars", len(doc.Text)).
		Msg("Parsed document")
	return doc, nil
}

// FromText wraps already-extracted text, used for manual note input.
func FromText(filename, text string, sourceType models.SourceType) *models.ParsedDocument {
	return &models.ParsedDocument{
		ID:         helper.GenerateUUID(),
		Filename:   filename,
		SourceType: sourceType,
		Text:       text,
		IngestedAt: time.Now().UTC(),
	}
}

func parsePDF(filePath string) (*models.ParsedDocument, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting pdf page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Text: strings.TrimSpace(pageText)})
	}

	return &models.ParsedDocument{
		SourceType: models.SourcePDF,
		Text:       joinPages(pages),
		Pages:      pages,
	}, nil
}

func parseDOCX(filePath string) (*models.ParsedDocument, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()

	// The docx body has no physical pages; treat each non-empty paragraph
	// run as one page-like unit so the merge/split policy applies.
	var pages []models.Page
	for _, para := range strings.Split(content, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pages = append(pages, models.Page{Number: len(pages) + 1, Text: para})
	}

	return &models.ParsedDocument{
		SourceType: models.SourceDOCX,
		Text:       joinPages(pages),
		Pages:      pages,
	}, nil
}

func parseTextFile(filePath string, sourceType models.SourceType) (*models.ParsedDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return &models.ParsedDocument{
		SourceType: sourceType,
		Text:       string(data),
	}, nil
}

func parseXLSX(filePath string) (*models.ParsedDocument, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		writeSheetHeading(&text, sheet.Name)
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			writeRow(&text, cells)
		}
	}

	return &models.ParsedDocument{
		SourceType: models.SourceMarkdown,
		Text:       text.String(),
	}, nil
}

func parseODS(filePath string) (*models.ParsedDocument, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		writeSheetHeading(&text, sheetName)
		for _, row := range rows {
			writeRow(&text, row)
		}
	}

	return &models.ParsedDocument{
		SourceType: models.SourceMarkdown,
		Text:       text.String(),
	}, nil
}

// writeSheetHeading emits a level-2 heading per sheet so the markdown
// chunker keeps sheets as separate sections with header paths.
func writeSheetHeading(b *strings.Builder, name string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString("## Sheet: " + name + "\n\n")
}

func writeRow(b *strings.Builder, cells []string) {
	empty := true
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			empty = false
			break
		}
	}
	if empty {
		return
	}
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func joinPages(pages []models.Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}
