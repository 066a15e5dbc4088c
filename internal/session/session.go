// Package session builds the pooled HTTP clients the board scrapers share:
// per-board cookie isolation, rotating proxies, bounded retries, and an
// optional TLS fingerprint profile for boards that inspect client hellos.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/jobharvest/jobharvest/internal/model"
)

// Profile selects the TLS shape of a client.
type Profile int

const (
	// ProfileDefault is the stock Go transport.
	ProfileDefault Profile = iota
	// ProfileChrome shapes the TLS client hello like a desktop Chrome.
	// Indeed and ZipRecruiter request it.
	ProfileChrome
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Factory hands out HTTP clients and runs requests with a shared retry
// policy. Proxies are an opaque read-only list rotated round-robin; each
// client keeps its own cookie jar so board sessions never bleed.
type Factory struct {
	proxies []string
	next    atomic.Uint32
	timeout time.Duration
	logger  *slog.Logger
}

// NewFactory creates a session factory. proxies may be nil; timeout zero
// falls back to 10s.
func NewFactory(proxies []string, timeout time.Duration, logger *slog.Logger) *Factory {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Factory{proxies: proxies, timeout: timeout, logger: logger}
}

// nextProxy returns the next proxy URL in rotation, nil when none are
// configured or the entry does not parse.
func (f *Factory) nextProxy() *url.URL {
	if len(f.proxies) == 0 {
		return nil
	}
	raw := f.proxies[int(f.next.Add(1)-1)%len(f.proxies)]
	u, err := url.Parse(raw)
	if err != nil {
		f.logger.Warn("skipping unparseable proxy", "proxy", raw, "error", err)
		return nil
	}
	return u
}

// Client builds a fresh client with its own cookie jar and the requested
// TLS profile. Callers keep one client per board for the whole run.
func (f *Factory) Client(profile Profile) *http.Client {
	jar, _ := cookiejar.New(nil)
	proxy := f.nextProxy()

	var transport http.RoundTripper
	if profile == ProfileChrome {
		transport = newChromeTransport(proxy)
	} else {
		t := &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		}
		if proxy != nil {
			t.Proxy = http.ProxyURL(proxy)
		}
		transport = t
	}

	return &http.Client{
		Jar:       jar,
		Timeout:   f.timeout,
		Transport: transport,
	}
}

// Request describes one board call executed by Do.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Do executes the request with the shared retry policy: up to 3 attempts
// with backoff and jitter on transport failures and 5xx; 4xx is terminal
// immediately. Returns the response body.
func (f *Factory) Do(ctx context.Context, client *http.Client, r *Request) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			var reader io.Reader
			if len(r.Body) > 0 {
				reader = bytes.NewReader(r.Body)
			}
			req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			for k, v := range r.Headers {
				req.Header.Set(k, v)
			}

			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				f.logger.Warn("http request failed",
					"method", r.Method, "url", r.URL,
					"duration_ms", time.Since(start).Milliseconds(), "error", err)
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			f.logger.Debug("http request completed",
				"method", r.Method, "url", r.URL,
				"status", resp.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", len(data))

			if resp.StatusCode >= 400 {
				httpErr := &model.HTTPError{
					StatusCode: resp.StatusCode,
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				}
				if resp.StatusCode >= 500 {
					return httpErr
				}
				// 4xx is terminal for the board, including 429.
				return retry.Unrecoverable(httpErr)
			}

			body = data
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("retrying request", "attempt", n, "url", r.URL, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Get is shorthand for a GET Do.
func (f *Factory) Get(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) ([]byte, error) {
	return f.Do(ctx, client, &Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
}

// BlockedStatus reports whether err is an HTTP status that means the board
// has hard-blocked us (401, 403, 429).
func BlockedStatus(err error) bool {
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	switch httpErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
