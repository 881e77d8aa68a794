// Package extract provides a thin HTTP client for the external
// content-extraction service, which turns a saved link into readable
// text for offline viewing.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Extraction errors
var (
	ErrNotConfigured    = errors.New("extractor url not configured")
	ErrUnreachable      = errors.New("failed to reach extraction service")
	ErrExtractionFailed = errors.New("extraction failed")
)

// Document is the readable-text result for a source URL.
type Document struct {
	Title     string `json:"title"`
	Byline    string `json:"byline,omitempty"`
	Text      string `json:"text"`
	WordCount int    `json:"wordCount"`
}

// extractRequest is the request body sent to the extraction service.
type extractRequest struct {
	URL string `json:"url"`
}

// Client calls the extraction service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the extraction service at baseURL.
// An empty baseURL yields a client whose calls return ErrNotConfigured.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			}),
		},
	}
}

// Extract asks the extraction service for the readable text of sourceURL.
func (c *Client) Extract(ctx context.Context, sourceURL string) (*Document, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(extractRequest{URL: sourceURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrExtractionFailed, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrExtractionFailed, err)
	}

	return &doc, nil
}
