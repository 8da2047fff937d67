// Package embed turns filtered record contents into vectors via an
// OpenAI-compatible embeddings endpoint and builds a flat nearest-neighbor
// index over them.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RateLimiter implements a token bucket for limiting embedding API calls.
type RateLimiter struct {
	tokens      int
	maxTokens   int
	refillRate  time.Duration
	lastRefill  time.Time
	tokensMutex sync.Mutex
}

// NewRateLimiter creates a rate limiter holding maxTokens, refilling one
// token per refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// GetToken tries to take a token from the bucket, refilling first based on
// elapsed time.
func (r *RateLimiter) GetToken() bool {
	r.tokensMutex.Lock()
	defer r.tokensMutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	tokensToAdd := int(elapsed / r.refillRate)

	if tokensToAdd > 0 {
		r.tokens = min(r.maxTokens, r.tokens+tokensToAdd)
		r.lastRefill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}

	return false
}

// Config holds the embedding endpoint settings.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Client calls an OpenAI-compatible /v1/embeddings endpoint.
type Client struct {
	client      *http.Client
	config      Config
	rateLimiter *RateLimiter
	maxRetries  int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewClient creates an embeddings client for the given configuration.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("embedding endpoint is required")
	}

	return &Client{
		client:      &http.Client{Timeout: 120 * time.Second},
		config:      config,
		rateLimiter: NewRateLimiter(5, 12*time.Second),
		maxRetries:  5,
		baseDelay:   time.Second,
		sleep:       time.Sleep,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

// Embed returns one vector per input text, in input order, retrying failed
// requests with exponential backoff.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.rateLimiter.GetToken() {
			log.Debug("rate limit exceeded, waiting for token")
			c.sleep(time.Second)
			continue
		}
		if attempt > 0 {
			log.Debug("retrying embedding request", "attempt", attempt, "max_retries", c.maxRetries)
		}

		vectors, err := c.doRequest(ctx, body, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		log.Error("embedding request failed", "error", err, "attempt", attempt)

		delay := c.baseDelay * time.Duration(1<<uint(attempt))
		log.Debug("backing off before retry", "delay", delay)
		c.sleep(delay)
	}

	return nil, fmt.Errorf("embedding request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte, want int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) != want {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), want)
	}

	vectors := make([][]float32, want)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
