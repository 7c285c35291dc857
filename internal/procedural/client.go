package procedural

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mirage/server/internal/worldgen"
)

// Client talks to a running Mirage server over its HTTP API
type Client struct {
	baseURL    string
	timeout    time.Duration
	retryCount int
	client     *http.Client
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration, retryCount int) *Client {
	if retryCount < 0 {
		retryCount = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		retryCount: retryCount,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// retryable reports whether the request may succeed if repeated
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ChunkResponse is the body of a single chunk request
type ChunkResponse struct {
	WorldID int64          `json:"world_id"`
	X       int            `json:"x"`
	Y       int            `json:"y"`
	Size    int            `json:"size"`
	Chunk   worldgen.Chunk `json:"chunk"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	GeneratorVersion int    `json:"generator_version"`
	SeedFingerprint  string `json:"seed_fingerprint"`
}

// HealthCheck checks if the server is healthy and returns what it reported
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if health.Status != "ok" {
		return nil, fmt.Errorf("server reported unhealthy status: %s", health.Status)
	}
	return &health, nil
}

// GenerateChunk fetches chunk (x, y) of world worldID. A size of zero uses the
// world's stored size.
func (c *Client) GenerateChunk(ctx context.Context, worldID int64, x, y, size int) (*ChunkResponse, error) {
	path := fmt.Sprintf("/api/worlds/%d/chunks/%d/%d", worldID, x, y)
	if size > 0 {
		path += fmt.Sprintf("?size=%d", size)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 100ms, 200ms, 400ms
			backoff := time.Duration(100*(1<<uint(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var response ChunkResponse
		err := c.getJSON(ctx, path, &response)
		if err == nil {
			return &response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("chunk request failed after %d attempts: %w", c.retryCount+1, lastErr)
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("Warning: failed to close response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			statusErr.Code = apiErr.Error
			statusErr.Message = apiErr.Message
		}
		return statusErr
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
