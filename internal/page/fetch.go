package page

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultFetchTimeout bounds FetchDocument when the caller passes no timeout.
const DefaultFetchTimeout = 30 * time.Second

// DefaultUserAgent is sent by FetchDocument.
const DefaultUserAgent = "Mozilla/5.0 (compatible; ApplyAgent/1.0)"

// FetchDocument downloads a results page over plain HTTP and parses it without running any
// script. Pages rendered client-side need RenderHTML instead.
func FetchDocument(ctx context.Context, rawURL string, timeout time.Duration, markers Markers) (*Document, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{Op: "fetch", Message: fmt.Sprintf("invalid URL %q", rawURL), Cause: err}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Op: "fetch", Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Op: "fetch", Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "fetch", Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return NewDocument(rawURL, resp.Body, markers)
}
