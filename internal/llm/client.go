package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/spherical/groq-vlm/internal/cache"
	"github.com/spherical/groq-vlm/internal/domain"
	"github.com/spherical/groq-vlm/internal/observability"
	"github.com/spherical/groq-vlm/internal/vlm"
)

const defaultCacheTTL = 24 * time.Hour

// Client executes RemoteModelConfigs against chat-completions endpoints
type Client struct {
	httpClient *http.Client
	retry      *RetryConfig
	limiter    *rate.Limiter
	cache      cache.Client
	cacheTTL   time.Duration
	logger     *observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithRateLimit limits outgoing requests to rps per second with the given burst. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache stores decoded responses in cc for ttl.
func WithCache(cc cache.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Response represents the API response structure
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Error   *APIFault `json:"error,omitempty"`
}

// APIFault is the error object returned by OpenAI-compatible APIs
type APIFault struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new remote model client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		cacheTTL:   defaultCacheTTL,
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one page image to the endpoint described by cfg and returns
// the decoded content.
func (c *Client) Complete(ctx context.Context, cfg *vlm.RemoteModelConfig, page *vlm.Page, image []byte) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	promptText, err := cfg.Prompt.Resolve(page)
	if err != nil {
		return "", domain.ExtractionError("Failed to resolve prompt", err)
	}

	body, err := json.Marshal(buildPayload(cfg, promptText, image))
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	key := cache.Key(cfg.URL, string(cfg.ResponseFormat.Resolve()), string(body))
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err == nil {
			c.logger.Debug().Str("model", cfg.Model()).Msg("Cache hit for page request")
			return string(cached), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Cache lookup failed")
		}
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.send(ctx, cfg, body)
	})
	if err != nil {
		return "", domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	var raw string
	if stream, _ := cfg.Params["stream"].(bool); stream {
		raw, err = c.parseStream(resp.Body)
	} else {
		raw, err = parseCompletion(resp.Body)
	}
	if err != nil {
		return "", err
	}

	content, err := cfg.ResponseFormat.Decode(raw)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, []byte(content), c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Cache store failed")
		}
	}

	return content, nil
}

// send performs one attempt. The attempt's deadline is the config timeout and
// is released once the body has been read or closed.
func (c *Client) send(ctx context.Context, cfg *vlm.RemoteModelConfig, body []byte) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// buildPayload merges cfg.Params with a single user message holding the image and prompt
func buildPayload(cfg *vlm.RemoteModelConfig, promptText string, image []byte) map[string]any {
	payload := make(map[string]any, len(cfg.Params)+1)
	for k, v := range cfg.Params {
		payload[k] = v
	}

	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	payload["messages"] = []Message{
		{
			Role: "user",
			Content: []ContentPart{
				{
					Type:     "image_url",
					ImageURL: &ImageURL{URL: imageURL},
				},
				{
					Type: "text",
					Text: promptText,
				},
			},
		},
	}
	return payload
}

// parseCompletion extracts the first choice from a non-streaming response
func parseCompletion(body io.Reader) (string, error) {
	var resp Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", domain.APIError("Failed to decode response", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", domain.APIError(resp.Error.Message, nil)
	}
	if len(resp.Choices) == 0 {
		return "", domain.APIError("No choices in response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// parseStream collects the content of a Server-Sent Events stream
func (c *Client) parseStream(body io.Reader) (string, error) {
	content, err := NewStreamParser(body).Collect()
	if err != nil {
		return "", domain.APIError("Failed to parse stream", err)
	}
	return content, nil
}
