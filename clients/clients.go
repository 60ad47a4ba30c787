// Package clients talks to a transcriber data server.
package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NotFoundError is returned when the server answers 404.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string { return "not found: " + e.URL }

type HTTP struct {
	c    *http.Client
	base string
}

// NewHTTP returns a client for the server at base. A zero timeout means
// 60 seconds.
func NewHTTP(base string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}, base: strings.TrimRight(base, "/")}
}

func (h *HTTP) Base() string { return h.base }

func (h *HTTP) url(parts ...string) string {
	esc := make([]string, len(parts))
	for i, p := range parts {
		esc[i] = url.PathEscape(p)
	}
	return h.base + "/" + strings.Join(esc, "/")
}

// Download fetches a URL relative to the server.
func (h *HTTP) Download(ctx context.Context, parts ...string) ([]byte, error) {
	u := h.url(parts...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{URL: u}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: %s", parts[0], resp.Status, string(body))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read: %w", parts[0], err)
	}
	return b, nil
}

// DownloadText is Download for text resources.
func (h *HTTP) DownloadText(ctx context.Context, parts ...string) (string, error) {
	b, err := h.Download(ctx, parts...)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
