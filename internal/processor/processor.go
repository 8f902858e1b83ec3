package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
)

// DefaultCooldown is the pause a worker takes after a page before starting the next one
const DefaultCooldown = 1 * time.Second

// PageFunc produces the result for a single page
type PageFunc func(ctx context.Context, page domain.PageImage) domain.PageResult

// PageTask represents a page with its index for ordering
type PageTask struct {
	Index int
	Page  domain.PageImage
}

// PageOutput represents a page result with its index for ordering
type PageOutput struct {
	Index  int
	Result domain.PageResult
}

// OrderedProcessor runs pages through a bounded worker pool and returns results in page order.
// With one worker pages run strictly one after another.
type OrderedProcessor struct {
	workers  int
	cooldown time.Duration
	logger   *zap.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// NewOrderedProcessor creates a processor with the given worker count and inter-page cooldown
func NewOrderedProcessor(workers int, cooldown time.Duration, logger *zap.Logger) *OrderedProcessor {
	if workers < 1 {
		workers = 1
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &OrderedProcessor{
		workers:  workers,
		cooldown: cooldown,
		logger:   logger,
		wait:     sleepContext,
	}
}

// ProcessPages runs fn over every page.
// The returned slice is ordered by input position. If ctx is cancelled the pages that
// were not started are skipped, and the results collected so far are returned with ctx.Err().
func (p *OrderedProcessor) ProcessPages(ctx context.Context, pages []domain.PageImage, fn PageFunc) ([]domain.PageResult, error) {
	if len(pages) == 0 {
		return []domain.PageResult{}, nil
	}

	inputQueue := make(chan *PageTask, len(pages))
	outputQueue := make(chan *PageOutput, len(pages))
	for i, page := range pages {
		inputQueue <- &PageTask{Index: i, Page: page}
	}
	close(inputQueue)

	workers := p.workers
	if workers > len(pages) {
		workers = len(pages)
	}

	var (
		wg    sync.WaitGroup
		taken int64
		done  int64
	)
	total := int64(len(pages))

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, inputQueue, outputQueue, fn, total, &taken, &done)
		}(i)
	}

	wg.Wait()
	close(outputQueue)

	resultsMap := make(map[int]domain.PageResult, len(pages))
	for out := range outputQueue {
		resultsMap[out.Index] = out.Result
	}

	// Build result slice preserving original order
	results := make([]domain.PageResult, 0, len(resultsMap))
	for i := range pages {
		if result, ok := resultsMap[i]; ok {
			results = append(results, result)
		}
	}

	if len(results) < len(pages) {
		p.logger.Warn("page processing stopped early",
			zap.Int("processed", len(results)),
			zap.Int("total_pages", len(pages)),
		)
		if err := ctx.Err(); err != nil {
			return results, err
		}
		return results, context.Canceled
	}

	return results, nil
}

// worker takes pages from the queue until it is drained or ctx is done
func (p *OrderedProcessor) worker(
	ctx context.Context,
	id int,
	inputQueue <-chan *PageTask,
	outputQueue chan<- *PageOutput,
	fn PageFunc,
	total int64,
	taken, done *int64,
) {
	p.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		if ctx.Err() != nil {
			p.logger.Debug("worker stopping due to context cancellation", zap.Int("worker_id", id))
			return
		}

		task, ok := <-inputQueue
		if !ok {
			return
		}
		n := atomic.AddInt64(taken, 1)

		result := fn(ctx, task.Page)
		outputQueue <- &PageOutput{Index: task.Index, Result: result}

		finished := atomic.AddInt64(done, 1)
		p.logger.Info("progress",
			zap.Int64("processed", finished),
			zap.Int64("total_pages", total),
			zap.Float64("percent", float64(finished)/float64(total)*100),
		)

		if n < total && p.cooldown > 0 {
			if err := p.wait(ctx, p.cooldown); err != nil {
				return
			}
		}
	}
}
