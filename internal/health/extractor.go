package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ExtractorChecker implements health checking for the content extraction service.
type ExtractorChecker struct {
	url    string
	client *http.Client
}

// NewExtractorChecker creates a new extraction service health checker.
// The url should be the base URL of the extraction service (e.g., "https://extractor.internal:8090").
func NewExtractorChecker(url string) *ExtractorChecker {
	return &ExtractorChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck performs a health check on the extraction service by making an HTTP request.
func (e *ExtractorChecker) HealthCheck(ctx context.Context) error {
	if e.url == "" {
		return fmt.Errorf("extractor url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach extraction service: %w", err)
	}
	defer resp.Body.Close()

	// Consider the service healthy only for successful (2xx) responses.
	// Non-2xx status codes likely indicate the service is unavailable or misconfigured.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("extractor unhealthy: unexpected status code %d", resp.StatusCode)
	}

	return nil
}
