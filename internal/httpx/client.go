// Package httpx wraps net/http with the retry and pooling behavior every
// outbound call in the pipeline shares.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/phuslu/log"
)

const (
	maxRedirects   = 10
	backoffFloor   = 2 * time.Second
	backoffCeiling = 60 * time.Second
)

// Client is a retrying HTTP GET client. Retries fire on transport
// errors and on 408/429/5xx responses, with exponential backoff and
// jitter bounded between 2s and 60s. All other statuses are returned to
// the caller for inspection.
type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

// New builds a client with a pooled HTTP/2-capable transport. userAgent
// is applied to every request unless the caller overrides the header;
// it should carry the configured contact email.
func New(timeout time.Duration, retries int, userAgent string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		retries:   retries,
		userAgent: userAgent,
	}
}

// UserAgent returns the default User-Agent string.
func (c *Client) UserAgent() string { return c.userAgent }

// GetWithRetry issues a GET for url with the given extra headers. The
// caller owns the returned response body. A nil error with a 4xx status
// is a valid outcome; only exhausted retries and non-retryable transport
// failures surface as errors.
func (c *Client) GetWithRetry(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, vals := range headers {
			req.Header.Del(k)
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Warn().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("request failed")
			continue
		}

		log.Debug().
			Str("url", url).
			Int("attempt", attempt+1).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("http get")

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
	return nil, fmt.Errorf("get %s: retries exhausted: %w", url, lastErr)
}

// GetBody is a convenience wrapper that returns the response body for a
// 200 response, or an error describing the status otherwise.
func (c *Client) GetBody(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	resp, err := c.GetWithRetry(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// StatusError reports a non-200 terminal response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: status %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a terminal 404/410 response.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

func sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoffDelay(attempt)):
		return nil
	}
}

// backoffDelay doubles per attempt and jitters between the floor and the
// capped delay, so no retry fires sooner than backoffFloor.
func backoffDelay(attempt int) time.Duration {
	d := backoffFloor << (attempt - 1)
	if d > backoffCeiling {
		d = backoffCeiling
	}
	return backoffFloor + time.Duration(rand.Int63n(int64(d-backoffFloor)+1))
}
