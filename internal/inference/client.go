// Package inference talks to an Ollama-compatible multimodal model endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/pdfvision/internal/domain"
)

const (
	// DefaultBaseURL is where a local Ollama listens
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is a small multimodal model that handles document pages well
	DefaultModel = "gemma3:4b"

	// DefaultTemperature keeps the output close to deterministic
	DefaultTemperature = 0.1

	// NormalizeTimeout bounds the text clean-up call
	NormalizeTimeout = 60 * time.Second

	chatPath     = "/api/chat"
	generatePath = "/api/generate"
	tagsPath     = "/api/tags"

	// maxErrorBody caps how much of a failed response ends up in the error
	maxErrorBody = 512
)

// Client is a single-shot client for the model endpoint, it never retries
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets the endpoint base URL, invalid URLs are ignored
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host == "" {
			return
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the model identifier
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithHTTPClient sets a custom HTTP client.
// Per-call deadlines come from the context, so the client should not carry its own Timeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new inference client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		httpClient:  &http.Client{},
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.model
}

// Infer sends the prompt and every image as one user turn and returns the generated text
func (c *Client) Infer(ctx context.Context, images [][]byte, prompt string, timeout time.Duration) (domain.Reply, error) {
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}

	req := &ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  encoded,
			},
		},
		Stream:      false,
		Temperature: c.temperature,
		Options:     &Options{Temperature: c.temperature},
	}

	c.logger.Debug("sending chat request",
		zap.String("model", c.model),
		zap.Int("images", len(images)),
		zap.Duration("timeout", timeout),
	)

	var resp ChatResponse
	if err := c.post(ctx, chatPath, req, timeout, &resp); err != nil {
		return domain.Reply{}, err
	}

	if resp.Message == nil {
		c.logger.Warn("no message field in chat response", zap.String("model", c.model))
		return domain.Reply{Outcome: domain.OutcomeEmpty}, nil
	}

	return domain.Reply{Text: resp.Message.Content, Outcome: domain.OutcomeText}, nil
}

// Normalize asks the model to fix up text read from the PDF text layer
func (c *Client) Normalize(ctx context.Context, text string) (string, error) {
	req := &GenerateRequest{
		Model:       c.model,
		Prompt:      NormalizePrompt(text),
		Stream:      false,
		Temperature: c.temperature,
		Options:     &Options{Temperature: c.temperature},
	}

	c.logger.Info("sending text to model",
		zap.String("model", c.model),
		zap.Int("characters", len(text)),
	)

	var resp GenerateResponse
	if err := c.post(ctx, generatePath, req, NormalizeTimeout, &resp); err != nil {
		return "", err
	}

	c.logger.Info("received normalized text", zap.Int("characters", len(resp.Response)))
	return resp.Response, nil
}

// Ping checks that the endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return domain.TransportError("failed to build request", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.TransportError(fmt.Sprintf("inference server returned status %d", resp.StatusCode), nil)
	}
	return nil
}

// post issues one JSON request bounded by timeout and decodes the response into out
func (c *Client) post(ctx context.Context, path string, body any, timeout time.Duration, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.TransportError("failed to marshal request", err)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.TransportError("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return domain.TransportError(fmt.Sprintf("inference server returned status %d: %s", resp.StatusCode, snippet), nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.TransportError("malformed response body", err)
	}

	c.logger.Debug("inference call completed",
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// classify maps a failed round trip to an error kind.
// parent is the caller's context: its cancellation is not a timeout.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return domain.TimeoutError("request timed out", err)
		}
		return domain.CanceledError("request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TimeoutError("request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.TimeoutError("request timed out", err)
	}
	return domain.TransportError("failed to communicate with inference server", err)
}

var (
	_ domain.InferenceClient = (*Client)(nil)
	_ domain.TextNormalizer  = (*Client)(nil)
	_ domain.HealthChecker   = (*Client)(nil)
)
