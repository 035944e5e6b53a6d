package readers

import (
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
)

type PdfFileReader struct {
}

func (r *PdfFileReader) CanRead(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".pdf"
}

// ReadPages extracts text page by page so every chunk keeps its page number.
// PDFs that defeat the page-wise extractor fall back to a whole-document
// conversion rendered as a single page.
func (r *PdfFileReader) ReadPages(path string) ([]Page, error) {
	pages, err := readPageWise(path)
	if err == nil && len(pages) > 0 {
		return pages, nil
	}

	res, convErr := docconv.ConvertPath(path)
	if convErr != nil {
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf document: %w", err)
		}
		return nil, fmt.Errorf("failed to read pdf document: %w", convErr)
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return []Page{{Number: 1, Text: res.Body}}, nil
}

func readPageWise(path string) (pages []Page, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= rdr.NumPage(); i++ {
		p := rdr.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}
