package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"alfredoptarigan/policy-analyzer/internal/models"
)

const DefaultScannedTextThreshold = 100

type PDFParserService interface {
	Extract(ctx context.Context, data []byte) (*models.ExtractedDocument, error)
	ExtractFile(ctx context.Context, filePath string) (*models.ExtractedDocument, error)
}

type pdfParserService struct {
	minTextChars int
}

// NewPDFParserService returns an extractor that treats documents with fewer
// than minTextChars trimmed characters as scanned.
func NewPDFParserService(minTextChars int) PDFParserService {
	if minTextChars <= 0 {
		minTextChars = DefaultScannedTextThreshold
	}
	return &pdfParserService{minTextChars: minTextChars}
}

func (p *pdfParserService) ExtractFile(ctx context.Context, filePath string) (*models.ExtractedDocument, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	return p.Extract(ctx, data)
}

// Extract parses data and returns the page-ordered text layer. It never
// retries; every failure is an *ExtractionError or a context error.
func (p *pdfParserService) Extract(ctx context.Context, data []byte) (doc *models.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = newExtractionError(ExtractionCorrupted, fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, classifyOpenError(err)
	}

	totalPage := reader.NumPage()
	pages := make([]string, 0, totalPage)

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		pages = append(pages, pageText(page))
	}

	text := strings.TrimSpace(strings.Join(pages, models.PageSeparator))
	charCount := utf8.RuneCountInString(text)
	if charCount < p.minTextChars {
		return nil, newExtractionError(
			ExtractionScannedOrImageOnly,
			fmt.Errorf("extracted %d characters from %d pages, need %d", charCount, totalPage, p.minTextChars),
		)
	}

	return &models.ExtractedDocument{
		Pages:     pages,
		Text:      text,
		PageCount: totalPage,
		CharCount: charCount,
	}, nil
}

// pageText joins the text runs of a page with single spaces, reading rows top
// to bottom. Pages whose layout cannot be walked fall back to the plain text
// stream.
func pageText(page pdf.Page) string {
	runs, err := pageRuns(page)
	if err != nil {
		plain, plainErr := page.GetPlainText(nil)
		if plainErr != nil {
			return ""
		}
		return strings.Join(strings.Fields(plain), " ")
	}
	return strings.Join(runs, " ")
}

func pageRuns(page pdf.Page) (runs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = fmt.Errorf("walk text rows: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		for _, word := range row.Content {
			s := strings.TrimSpace(word.S)
			if s != "" {
				runs = append(runs, s)
			}
		}
	}
	return runs, nil
}

func classifyOpenError(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return newExtractionError(ExtractionPasswordProtected, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password"), strings.Contains(msg, "encrypt"):
		return newExtractionError(ExtractionPasswordProtected, err)
	case strings.Contains(msg, "not a pdf"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "invalid header"),
		strings.Contains(msg, "xref"),
		strings.Contains(msg, "trailer"),
		strings.Contains(msg, "eof"):
		return newExtractionError(ExtractionCorrupted, err)
	}
	return newExtractionError(ExtractionUnknown, err)
}
