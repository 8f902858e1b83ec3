// Package textlayer reads the embedded text of a PDF without rendering it.
package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
)

// NoTextPlaceholder is returned when no page carries extractable text
const NoTextPlaceholder = "No extractable text found in the PDF. The document might be scanned or contain images only."

// Extractor implements domain.TextExtractor with ledongthuc/pdf
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a text-layer extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text of every page with a "--- Page N ---" header in front of each non-empty page
func (e *Extractor) Extract(ctx context.Context, document []byte) (text string, err error) {
	e.logger.Info("extracting text layer from PDF", zap.Int("bytes", len(document)))

	// the parser panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = domain.TextLayerError("failed to extract text from PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return "", domain.TextLayerError("failed to extract text from PDF", err)
	}

	pages := make([]string, reader.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return "", domain.CanceledError("text extraction cancelled", err)
		}
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to read page text", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		pages[i] = content
	}

	text = FormatPages(pages)
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("no text extracted from PDF, it might be scanned or image only")
		return NoTextPlaceholder, nil
	}

	e.logger.Info("extracted text layer", zap.Int("characters", len(text)))
	return text, nil
}

// FormatPages joins page texts, pages with no text are left out but keep their numbering
func FormatPages(pages []string) string {
	var b strings.Builder
	for i, content := range pages {
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", i+1)
		b.WriteString(content)
	}
	return b.String()
}

var _ domain.TextExtractor = (*Extractor)(nil)
