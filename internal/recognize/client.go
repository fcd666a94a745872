package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ClientConfig holds configuration for the recognition service client.
type ClientConfig struct {
	Address        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration. Recognition runs a
// language model pass per crop, so the timeout is generous.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:        "http://localhost:9420",
		RequestTimeout: 60 * time.Second,
	}
}

// Client implements Service against the recognition service's HTTP API.
type Client struct {
	httpClient *http.Client
	addr       string
	logger     *slog.Logger
}

// NewClient creates a recognition service client.
func NewClient(addr string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultClientConfig()
	if addr != "" {
		cfg.Address = addr
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		addr:       cfg.Address,
		logger:     logger,
	}
}

// Probe checks that the recognition service is reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/healthz", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recognition service at %s not ready: %w", c.addr, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recognition service at %s not ready: status %d", c.addr, resp.StatusCode)
	}
	return nil
}

// extractResponse is the service's wire shape for an extraction result.
type extractResponse struct {
	Messages []Candidate `json:"messages"`
	Error    string      `json:"error,omitempty"`
}

// Extract sends the crop as PNG and returns extracted candidates in
// on-screen order.
func (c *Client) Extract(ctx context.Context, crop image.Image) ([]Candidate, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("%w: encode crop: %v", ErrRecognitionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/v1/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: build extract request: %v", ErrRecognitionFailed, err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: extract endpoint returned status %d", ErrRecognitionFailed, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode extract response: %v", ErrRecognitionFailed, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRecognitionFailed, out.Error)
	}

	return out.Messages, nil
}

func (c *Client) closeBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		c.logger.Debug("failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		c.logger.Debug("failed to close response body", "error", err)
	}
}
