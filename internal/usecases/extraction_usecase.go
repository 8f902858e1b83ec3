package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
	"github.com/your-org/pdfvision/internal/inference"
	"github.com/your-org/pdfvision/internal/processor"
	"github.com/your-org/pdfvision/internal/textlayer"
)

const (
	// NoImagesText is the result when rendering produced no pages
	NoImagesText = "No images could be extracted from the PDF."
	// EmptyBatchText replaces a batch reply that carried no content
	EmptyBatchText = "No text could be extracted from the PDF."

	// BatchTimeoutText explains a batch request that ran out of time
	BatchTimeoutText = "Request timed out while processing PDF. Try processing fewer pages or using page-by-page mode."

	batchTimeoutPerPage = 30 * time.Second
	minBatchTimeout     = 120 * time.Second
	maxBatchTimeout     = 600 * time.Second
)

// Options tunes the orchestration
type Options struct {
	// InferenceConcurrency bounds model calls across every extraction served by this usecase
	InferenceConcurrency int
	PageCooldown         time.Duration
	BackoffStep          time.Duration
}

// ExtractionUsecase turns a PDF into text.
// Vision mode renders the pages and sends them to the model one by one or all at once,
// text mode reads the text layer and has the model clean it up.
type ExtractionUsecase struct {
	renderer    domain.PageRenderer
	client      domain.InferenceClient
	extractor   domain.TextExtractor
	normalizer  domain.TextNormalizer
	pages       *processor.PageProcessor
	ordered     *processor.OrderedProcessor
	limiter     *RateLimiter
	backoffStep time.Duration
	logger      *zap.Logger
}

// NewExtractionUsecase wires the collaborators behind one shared inference limiter
func NewExtractionUsecase(
	renderer domain.PageRenderer,
	client domain.InferenceClient,
	extractor domain.TextExtractor,
	normalizer domain.TextNormalizer,
	logger *zap.Logger,
	opts Options,
) *ExtractionUsecase {
	if opts.InferenceConcurrency < 1 {
		opts.InferenceConcurrency = 1
	}
	if opts.BackoffStep <= 0 {
		opts.BackoffStep = processor.DefaultBackoffStep
	}

	limiter := NewRateLimiter(opts.InferenceConcurrency)
	gated := &gatedClient{next: client, limiter: limiter}

	return &ExtractionUsecase{
		renderer:    renderer,
		client:      gated,
		extractor:   extractor,
		normalizer:  &gatedNormalizer{next: normalizer, limiter: limiter},
		pages:       processor.NewPageProcessor(gated, logger),
		ordered:     processor.NewOrderedProcessor(opts.InferenceConcurrency, opts.PageCooldown, logger),
		limiter:     limiter,
		backoffStep: opts.BackoffStep,
		logger:      logger,
	}
}

// Extract runs one extraction. Each call is independent, nothing is kept once it returns.
// If ctx is cancelled during page-by-page processing the pages finished so far are returned
// with Partial set, together with a canceled error.
func (u *ExtractionUsecase) Extract(ctx context.Context, document []byte, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(document) == 0 {
		return nil, domain.ValidationError("empty document", nil)
	}

	if req.Mode == domain.ModeText {
		return u.extractTextLayer(ctx, document)
	}

	start := time.Now()
	images, err := u.renderer.Render(ctx, document, req.MaxPages)
	if err != nil {
		u.logger.Error("failed to render PDF", zap.Error(err))
		return nil, err
	}
	u.logger.Info("rendered PDF",
		zap.Int("total_pages", len(images)),
		zap.Duration("duration", time.Since(start)),
	)

	if len(images) == 0 {
		return &domain.ExtractionResult{FullText: NoImagesText}, nil
	}

	if req.ProcessPerPage {
		return u.extractPerPage(ctx, images, req)
	}
	return u.extractBatch(ctx, images)
}

func (u *ExtractionUsecase) extractPerPage(ctx context.Context, images []domain.PageImage, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	total := len(images)
	policy := processor.Policy{
		BaseTimeout: req.PageTimeout,
		RetryCount:  req.RetryCount,
		BackoffStep: u.backoffStep,
		MaxTimeout:  processor.DefaultMaxPageTimeout,
	}

	start := time.Now()
	results, err := u.ordered.ProcessPages(ctx, images, func(ctx context.Context, page domain.PageImage) domain.PageResult {
		return u.pages.ProcessPage(ctx, page, total, policy)
	})
	// the last page can be cut short after every page was already taken
	if err == nil {
		err = ctx.Err()
	}

	result := &domain.ExtractionResult{
		FullText:  JoinPages(results),
		PageCount: total,
		Pages:     results,
	}

	if err != nil {
		result.Partial = true
		u.logger.Warn("page-by-page extraction cancelled",
			zap.Int("processed", len(results)),
			zap.Int("total_pages", total),
			zap.Error(err),
		)
		return result, domain.CanceledError(fmt.Sprintf("extraction cancelled after %d of %d pages", len(results), total), err)
	}

	u.logger.Info("page-by-page extraction finished",
		zap.Int("total_pages", total),
		zap.Int("failed_pages", result.FailedPages()),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (u *ExtractionUsecase) extractBatch(ctx context.Context, images []domain.PageImage) (*domain.ExtractionResult, error) {
	total := len(images)
	data := make([][]byte, total)
	for i, img := range images {
		data[i] = img.Data
	}
	timeout := BatchTimeout(total)

	u.logger.Info("sending all pages in one request",
		zap.Int("total_pages", total),
		zap.Duration("timeout", timeout),
	)

	start := time.Now()
	reply, err := u.client.Infer(ctx, data, inference.BatchPrompt(total), timeout)
	if err != nil {
		u.logger.Error("batch extraction failed", zap.Int("total_pages", total), zap.Error(err))
		if domain.KindOf(err) == domain.KindTimeout {
			return nil, domain.TimeoutError(BatchTimeoutText, err)
		}
		return nil, err
	}

	text := reply.Text
	if reply.Outcome == domain.OutcomeEmpty {
		u.logger.Warn("no content in batch reply", zap.Int("total_pages", total))
		text = EmptyBatchText
	}

	u.logger.Info("batch extraction finished",
		zap.Int("total_pages", total),
		zap.Int("characters", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return &domain.ExtractionResult{FullText: text, PageCount: total}, nil
}

func (u *ExtractionUsecase) extractTextLayer(ctx context.Context, document []byte) (*domain.ExtractionResult, error) {
	raw, err := u.extractor.Extract(ctx, document)
	if err != nil {
		u.logger.Error("text layer extraction failed", zap.Error(err))
		return nil, err
	}

	// nothing for the model to clean up
	if raw == textlayer.NoTextPlaceholder {
		return &domain.ExtractionResult{FullText: raw}, nil
	}

	text, err := u.normalizer.Normalize(ctx, raw)
	if err != nil {
		u.logger.Error("text cleanup failed", zap.Error(err))
		return nil, err
	}
	return &domain.ExtractionResult{FullText: text}, nil
}

// InferenceInFlight reports how many model calls currently hold a limiter slot
func (u *ExtractionUsecase) InferenceInFlight() int {
	return u.limiter.InFlight()
}

// InferenceCapacity reports how many model calls may run at once
func (u *ExtractionUsecase) InferenceCapacity() int {
	return u.limiter.Capacity()
}

// JoinPages concatenates page texts behind "--- Page N ---" markers in page order
func JoinPages(results []domain.PageResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("\n--- Page %d ---\n%s", r.PageNumber, r.Text)
	}
	return strings.Join(parts, "\n")
}

// BatchTimeout is 30s per page, kept between 2 and 10 minutes
func BatchTimeout(pages int) time.Duration {
	timeout := time.Duration(pages) * batchTimeoutPerPage
	if timeout < minBatchTimeout {
		return minBatchTimeout
	}
	if timeout > maxBatchTimeout {
		return maxBatchTimeout
	}
	return timeout
}
