package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ClientConfig holds configuration for the capture daemon client.
type ClientConfig struct {
	Address        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:        "http://localhost:9410",
		RequestTimeout: 10 * time.Second,
	}
}

// Client implements Source against the capture daemon's HTTP API.
type Client struct {
	httpClient *http.Client
	addr       string
	logger     *slog.Logger
}

// NewClient creates a capture daemon client. No network I/O happens
// here; use Probe to fail fast on a bad endpoint.
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

// Probe checks that the capture daemon is reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/healthz", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("capture daemon at %s not ready: %w", c.addr, err)
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("capture daemon at %s not ready: status %d", c.addr, resp.StatusCode)
	}
	return nil
}

// windowDTO is the daemon's wire shape for a detected window.
type windowDTO struct {
	Name   string `json:"name"`
	Region struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"region"`
}

// DetectWindows returns the currently visible chat windows.
func (c *Client) DetectWindows(ctx context.Context) ([]Window, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/windows", nil)
	if err != nil {
		return nil, fmt.Errorf("build windows request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: windows endpoint returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var dtos []windowDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("%w: decode windows response: %v", ErrUnavailable, err)
	}

	windows := make([]Window, 0, len(dtos))
	for _, d := range dtos {
		windows = append(windows, Window{
			Name:   d.Name,
			Region: image.Rect(d.Region.X, d.Region.Y, d.Region.X+d.Region.Width, d.Region.Y+d.Region.Height),
		})
	}
	return windows, nil
}

// CaptureFrame grabs one full-screen frame as PNG from the daemon.
func (c *Client) CaptureFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/frame", nil)
	if err != nil {
		return nil, fmt.Errorf("build frame request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drainAndClose(resp.Body, c.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: frame endpoint returned status %d", ErrUnavailable, resp.StatusCode)
	}

	frame, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrUnavailable, err)
	}
	return frame, nil
}

// Crop cuts the window region out of the frame. The region is clamped
// to the frame bounds; a region fully outside the frame is an error.
func (c *Client) Crop(frame image.Image, region image.Rectangle) (image.Image, error) {
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("region %v outside frame bounds %v", region, frame.Bounds())
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := frame.(subImager); ok {
		return si.SubImage(region), nil
	}

	// Frame type without SubImage support: copy the region out.
	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, region.Min, draw.Src)
	return dst, nil
}

func drainAndClose(body io.ReadCloser, logger *slog.Logger) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		logger.Debug("failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		logger.Debug("failed to close response body", "error", err)
	}
}
