package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls the single retry after a throttled or failed response.
type RetryPolicy struct {
	Retry429   bool
	Max429Wait time.Duration
	Retry5xx   bool
	Backoff5xx time.Duration
}

// DefaultRetryPolicy retries 429 (Retry-After capped at 60s) and 5xx (1s backoff) once.
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 60 * time.Second,
	Retry5xx:   true,
	Backoff5xx: time.Second,
}

// Options configures a fetch.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Fetcher downloads and parses playlists and guides.
type Fetcher struct {
	opts Options
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Fetcher{opts: opts}
}

// FetchM3U downloads url and parses it as M3U. The decoded document is returned alongside the entries.
func (f *Fetcher) FetchM3U(ctx context.Context, url string) ([]Entry, []byte, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	body = toUTF8(body)
	entries, err := ParseM3U(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse m3u: %w", err)
	}
	return entries, body, nil
}

// FetchXMLTV downloads url and parses it as XMLTV.
func (f *Fetcher) FetchXMLTV(ctx context.Context, url string) (*Guide, []byte, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	guide, err := ParseXMLTV(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse xmltv: %w", err)
	}
	return guide, body, nil
}

// Fetch performs a GET with the configured retry policy and returns the decompressed body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.opts.Client
	if client == nil {
		client = &http.Client{Timeout: f.opts.Timeout}
	}
	resp, err := f.doWithRetry(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return decompress(body)
}

func (f *Fetcher) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	return req, nil
}

// doWithRetry performs the request and, on 429/5xx when the policy allows, waits and retries once.
// Other 4xx responses are returned as-is.
func (f *Fetcher) doWithRetry(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := f.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	policy := f.opts.Retry
	code := resp.StatusCode

	var wait time.Duration
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
	case code >= 500 && policy.Retry5xx:
		wait = policy.Backoff5xx
	default:
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}
	req, err = f.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	resp, err = client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	return resp, nil
}

func parseRetryAfter(v string, max time.Duration) time.Duration {
	wait := time.Second
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}
