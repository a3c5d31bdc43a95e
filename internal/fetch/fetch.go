// Package fetch loads page markup for the extractor.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Page is the markup of one page as seen by the page context.
type Page struct {
	URL  string
	HTML string
	// Rendered is true when a real browser produced the markup, so
	// non-rendered elements are already marked and dynamic panels opened.
	Rendered bool
}

// Source produces a Page for a URL.
type Source interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) pagesum/1.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

var ErrNotHTML = errors.New("response is not html")

// HTTPSource fetches raw markup with a plain GET request.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: defaultUserAgent,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for '%s': %w", url, err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to '%s' failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request to '%s' failed: %s", url, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
		return nil, fmt.Errorf("%s: %w (%s)", url, ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from '%s': %w", url, err)
	}
	return &Page{URL: resp.Request.URL.String(), HTML: string(body)}, nil
}

func isHTML(contentType string) bool {
	for _, prefix := range []string{"text/html", "application/xhtml+xml", "text/plain"} {
		if len(contentType) >= len(prefix) && contentType[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// Fallback tries each source in order and returns the first page.
type Fallback []Source

func (f Fallback) Fetch(ctx context.Context, url string) (*Page, error) {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		page, err := s.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no page source configured for '%s'", url)
	}
	return nil, errors.Join(errs...)
}
