package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/pdfvision/internal/domain"
)

func makePages(n int) []domain.PageImage {
	pages := make([]domain.PageImage, n)
	for i := range pages {
		pages[i] = domain.PageImage{PageNumber: i + 1, Data: []byte(fmt.Sprintf("page-%d", i+1))}
	}
	return pages
}

func echoPage(ctx context.Context, page domain.PageImage) domain.PageResult {
	return domain.PageResult{
		PageNumber: page.PageNumber,
		Text:       string(page.Data),
		Succeeded:  true,
		Outcome:    domain.OutcomeText,
		Attempts:   1,
	}
}

// TestProcessorOrderPreservation tests that results come back in page order with many workers
func TestProcessorOrderPreservation(t *testing.T) {
	processor := NewOrderedProcessor(5, 0, zaptest.NewLogger(t))
	pages := makePages(40)

	results, err := processor.ProcessPages(context.Background(), pages, func(ctx context.Context, page domain.PageImage) domain.PageResult {
		// finish out of order
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return echoPage(ctx, page)
	})
	require.NoError(t, err)
	require.Len(t, results, 40)

	for i, result := range results {
		assert.Equal(t, i+1, result.PageNumber, "order should be preserved at index %d", i)
		assert.Equal(t, fmt.Sprintf("page-%d", i+1), result.Text)
	}
}

// TestProcessorFailedPageKeepsPosition tests that a failed page does not disturb its neighbours
func TestProcessorFailedPageKeepsPosition(t *testing.T) {
	processor := NewOrderedProcessor(1, 0, zaptest.NewLogger(t))
	pages := makePages(5)

	results, err := processor.ProcessPages(context.Background(), pages, func(ctx context.Context, page domain.PageImage) domain.PageResult {
		if page.PageNumber == 3 {
			return failedPage(3, "Request timed out after 3 attempts", 3)
		}
		return echoPage(ctx, page)
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, result := range results {
		assert.Equal(t, i+1, result.PageNumber)
		if result.PageNumber == 3 {
			assert.False(t, result.Succeeded)
			assert.Contains(t, result.Text, "page 3")
			continue
		}
		assert.True(t, result.Succeeded)
	}
}

// TestProcessorBoundedConcurrency tests that no more than the configured workers run at once
func TestProcessorBoundedConcurrency(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			processor := NewOrderedProcessor(workers, 0, zaptest.NewLogger(t))

			var inFlight, peak int64
			_, err := processor.ProcessPages(context.Background(), makePages(12), func(ctx context.Context, page domain.PageImage) domain.PageResult {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return echoPage(ctx, page)
			})
			require.NoError(t, err)
			assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(workers))
		})
	}
}

// TestProcessorCooldownBetweenPages tests that the pause happens between pages but not after the last one
func TestProcessorCooldownBetweenPages(t *testing.T) {
	processor := NewOrderedProcessor(1, time.Second, zaptest.NewLogger(t))

	var mu sync.Mutex
	var waits []time.Duration
	processor.wait = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}

	results, err := processor.ProcessPages(context.Background(), makePages(4), echoPage)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, waits)
}

// TestProcessorCancellationReturnsPartialResults tests that pages after a cancellation are skipped
func TestProcessorCancellationReturnsPartialResults(t *testing.T) {
	processor := NewOrderedProcessor(1, 0, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	results, err := processor.ProcessPages(ctx, makePages(10), func(ctx context.Context, page domain.PageImage) domain.PageResult {
		atomic.AddInt64(&calls, 1)
		if page.PageNumber == 3 {
			cancel()
		}
		return echoPage(ctx, page)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, i+1, result.PageNumber)
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

// TestProcessorEmptyInput tests that no pages means no work
func TestProcessorEmptyInput(t *testing.T) {
	processor := NewOrderedProcessor(2, time.Second, zaptest.NewLogger(t))
	results, err := processor.ProcessPages(context.Background(), nil, echoPage)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestProcessorConcurrentDocuments tests that independent documents do not share state
func TestProcessorConcurrentDocuments(t *testing.T) {
	processor := NewOrderedProcessor(2, 0, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for doc := 0; doc < 8; doc++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			results, err := processor.ProcessPages(context.Background(), makePages(size), echoPage)
			if err != nil {
				errs <- err
				return
			}
			if len(results) != size {
				errs <- fmt.Errorf("expected %d results, got %d", size, len(results))
			}
		}(doc + 1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("error during concurrent processing: %v", err)
	}
}
