package domain

import (
	"context"
	"time"
)

// PageRenderer converts a PDF into ordered page images
type PageRenderer interface {
	// Render returns at most maxPages images, numbered from 1 in document order
	Render(ctx context.Context, document []byte, maxPages int) ([]PageImage, error)
}

// InferenceClient sends images and a prompt to the model in a single call
type InferenceClient interface {
	// Infer issues exactly one request and blocks for at most timeout.
	// A reply without content is not an error, it has Outcome OutcomeEmpty.
	Infer(ctx context.Context, images [][]byte, prompt string, timeout time.Duration) (Reply, error)
}

// TextExtractor reads the embedded text layer of a PDF
type TextExtractor interface {
	Extract(ctx context.Context, document []byte) (string, error)
}

// TextNormalizer asks the model to clean up text read from the text layer
type TextNormalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// HealthChecker reports whether a remote dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}
