// Package renderer turns PDF bytes into JPEG page images using MuPDF through go-fitz.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"time"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/pdfvision/internal/domain"
)

const (
	DefaultDPI     = 200
	DefaultQuality = 85
)

// Options configures a FitzRenderer
type Options struct {
	DPI     float64
	Quality int
	// Workers bounds how many pages are rasterized and encoded at once
	Workers int
}

// FitzRenderer implements domain.PageRenderer
type FitzRenderer struct {
	opts   Options
	logger *zap.Logger
}

// NewFitzRenderer creates a renderer, zero options fall back to 200 DPI, quality 85, one worker
func NewFitzRenderer(opts Options, logger *zap.Logger) *FitzRenderer {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &FitzRenderer{opts: opts, logger: logger}
}

// Render converts up to maxPages pages of the document into JPEG images
func (r *FitzRenderer) Render(ctx context.Context, document []byte, maxPages int) ([]domain.PageImage, error) {
	if len(document) == 0 {
		return nil, domain.RenderError("failed to open PDF", fmt.Errorf("document is empty"))
	}

	start := time.Now()
	r.logger.Info("converting PDF to images",
		zap.Int("max_pages", maxPages),
		zap.Float64("dpi", r.opts.DPI),
	)

	doc, err := fitz.NewFromMemory(document)
	if err != nil {
		return nil, domain.RenderError("failed to open PDF", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	count := total
	if maxPages > 0 && count > maxPages {
		count = maxPages
	}

	images := make([]domain.PageImage, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i := 0; i < count; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := r.renderPage(doc, i)
			if err != nil {
				return err
			}
			images[i] = domain.PageImage{PageNumber: i + 1, Data: data}
			r.logger.Debug("converted page to image",
				zap.Int("page", i+1),
				zap.Int("total_pages", count),
				zap.Float64("size_kb", images[i].SizeKB()),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, domain.CanceledError("rendering cancelled", ctx.Err())
		}
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.RenderError("failed to convert PDF to images", err)
	}

	r.logger.Info("converted PDF to images",
		zap.Int("document_pages", total),
		zap.Int("rendered_pages", count),
		zap.Duration("duration", time.Since(start)),
	)

	return images, nil
}

// renderPage rasterizes one zero-based page and encodes it as JPEG.
// fitz.Document serializes access internally, encoding runs in parallel.
func (r *FitzRenderer) renderPage(doc *fitz.Document, index int) ([]byte, error) {
	img, err := doc.ImageDPI(index, r.opts.DPI)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("failed to render page %d", index+1), err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return nil, domain.RenderError(fmt.Sprintf("failed to encode page %d as JPEG", index+1), err)
	}
	return buf.Bytes(), nil
}

var _ domain.PageRenderer = (*FitzRenderer)(nil)
