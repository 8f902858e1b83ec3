package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
	"github.com/your-org/pdfvision/internal/inference"
)

const (
	// DefaultBackoffStep is added to the wait before every further retry: 5s, 10s, 15s...
	DefaultBackoffStep = 5 * time.Second

	// DefaultMaxPageTimeout caps the size-derived page timeout
	DefaultMaxPageTimeout = 180 * time.Second

	// kbPerTimeoutSecond converts image size into seconds of timeout
	kbPerTimeoutSecond = 10
)

// Policy is the page-scoped retry and timeout policy
type Policy struct {
	BaseTimeout time.Duration
	RetryCount  int
	BackoffStep time.Duration
	MaxTimeout  time.Duration
}

// PageTimeout sizes the timeout from the image: sizeKB/10 seconds, at least BaseTimeout, at most MaxTimeout
func (p Policy) PageTimeout(sizeKB float64) time.Duration {
	timeout := time.Duration(int(sizeKB/kbPerTimeoutSecond)) * time.Second
	if timeout < p.BaseTimeout {
		timeout = p.BaseTimeout
	}
	maxTimeout := p.MaxTimeout
	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxPageTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	return timeout
}

// Backoff returns the wait after the given zero-based failed attempt
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * p.BackoffStep
}

// PageProcessor runs one page through the model with retries.
// It never returns an error: exhausted or fatal failures become placeholder text.
type PageProcessor struct {
	client domain.InferenceClient
	logger *zap.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewPageProcessor creates a page processor around a single-shot client
func NewPageProcessor(client domain.InferenceClient, logger *zap.Logger) *PageProcessor {
	return &PageProcessor{
		client: client,
		logger: logger,
		wait:   sleepContext,
	}
}

// ProcessPage extracts the text of one page
func (p *PageProcessor) ProcessPage(ctx context.Context, image domain.PageImage, totalPages int, policy Policy) domain.PageResult {
	page := image.PageNumber
	timeout := policy.PageTimeout(image.SizeKB())
	attempts := policy.RetryCount + 1
	prompt := inference.PagePrompt(page, totalPages)

	p.logger.Info("processing page",
		zap.Int("page", page),
		zap.Int("total_pages", totalPages),
		zap.Float64("size_kb", image.SizeKB()),
		zap.Duration("timeout", timeout),
	)

	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		p.logger.Debug("sending page to model",
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
		)

		reply, err := p.client.Infer(ctx, [][]byte{image.Data}, prompt, timeout)
		if err == nil {
			return p.succeeded(page, totalPages, reply, attempt+1, time.Since(start))
		}

		switch {
		case domain.IsKind(err, domain.KindCanceled) || ctx.Err() != nil:
			p.logger.Warn("page processing cancelled", zap.Int("page", page))
			return failedPage(page, "extraction cancelled", attempt+1)

		case !domain.Retryable(err):
			p.logger.Error("unexpected error processing page",
				zap.Int("page", page),
				zap.Int("total_pages", totalPages),
				zap.Error(err),
			)
			return failedPage(page, err.Error(), attempt+1)

		case attempt < attempts-1:
			backoff := policy.Backoff(attempt)
			p.logger.Warn("page attempt failed, retrying",
				zap.Int("page", page),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			if werr := p.wait(ctx, backoff); werr != nil {
				return failedPage(page, "extraction cancelled", attempt+1)
			}

		case domain.IsKind(err, domain.KindTimeout):
			p.logger.Error("page timed out on every attempt",
				zap.Int("page", page),
				zap.Int("attempts", attempts),
			)
			return failedPage(page, fmt.Sprintf("Request timed out after %d attempts", attempts), attempts)

		default:
			p.logger.Error("failed to communicate with inference server",
				zap.Int("page", page),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			return failedPage(page, "Failed to communicate with inference server", attempts)
		}
	}

	// only reachable with a negative retry count
	return failedPage(page, "no attempts made", 0)
}

func (p *PageProcessor) succeeded(page, totalPages int, reply domain.Reply, attempts int, elapsed time.Duration) domain.PageResult {
	text := reply.Text
	outcome := reply.Outcome
	if outcome == domain.OutcomeEmpty {
		p.logger.Warn("model returned no content for page", zap.Int("page", page))
		text = EmptyPageText(page)
	}

	p.logger.Info("completed page",
		zap.Int("page", page),
		zap.Int("total_pages", totalPages),
		zap.Duration("duration", elapsed),
		zap.Int("characters", len(text)),
	)

	return domain.PageResult{
		PageNumber: page,
		Text:       text,
		Succeeded:  true,
		Outcome:    outcome,
		Attempts:   attempts,
	}
}

// EmptyPageText is the placeholder for a page whose reply carried no content
func EmptyPageText(page int) string {
	return fmt.Sprintf("No text could be extracted from page %d.", page)
}

// FailedPageText is the placeholder for a page that could not be processed
func FailedPageText(page int, reason string) string {
	return fmt.Sprintf("[Error processing page %d: %s]", page, reason)
}

func failedPage(page int, reason string, attempts int) domain.PageResult {
	return domain.PageResult{
		PageNumber: page,
		Text:       FailedPageText(page, reason),
		Succeeded:  false,
		Outcome:    domain.OutcomeFailed,
		Attempts:   attempts,
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
