package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/your-org/pdfvision/internal/domain"
)

// RateLimiter is a semaphore that bounds how many operations run at once.
// Acquire blocks until a slot frees up or ctx is done.
type RateLimiter struct {
	semaphore     chan struct{}
	maxConcurrent int
}

// NewRateLimiter creates a limiter with maxConcurrent slots
func NewRateLimiter(maxConcurrent int) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		semaphore:     make(chan struct{}, maxConcurrent),
		maxConcurrent: maxConcurrent,
	}
}

// Acquire waits for a free slot
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case rl.semaphore <- struct{}{}:
		return nil
	}
}

// Release frees a slot
func (rl *RateLimiter) Release() {
	select {
	case <-rl.semaphore:
	default:
		// releasing an empty semaphore is a no-op
	}
}

// InFlight returns the number of held slots
func (rl *RateLimiter) InFlight() int {
	return len(rl.semaphore)
}

// Capacity returns the number of slots
func (rl *RateLimiter) Capacity() int {
	return rl.maxConcurrent
}

// slotError classifies a failed Acquire: an expired deadline is a timeout, anything else a cancellation
func slotError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TimeoutError("timed out waiting for inference slot", err)
	}
	return domain.CanceledError("waiting for inference slot", err)
}

// gatedClient holds a limiter slot for the duration of each model call.
// Backoff waits happen outside Infer, so they never hold a slot.
type gatedClient struct {
	next    domain.InferenceClient
	limiter *RateLimiter
}

func (g *gatedClient) Infer(ctx context.Context, images [][]byte, prompt string, timeout time.Duration) (domain.Reply, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		return domain.Reply{}, slotError(err)
	}
	defer g.limiter.Release()
	return g.next.Infer(ctx, images, prompt, timeout)
}

// gatedNormalizer shares the inference limiter, cleanup calls hit the same model
type gatedNormalizer struct {
	next    domain.TextNormalizer
	limiter *RateLimiter
}

func (g *gatedNormalizer) Normalize(ctx context.Context, text string) (string, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		return "", slotError(err)
	}
	defer g.limiter.Release()
	return g.next.Normalize(ctx, text)
}
