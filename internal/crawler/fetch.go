package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// maxBody bounds any single response.
const maxBody = 32 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type fetcher struct {
	client    *http.Client
	userAgent string
	newBack   func() retry.Backoff
	logger    *zap.Logger
}

func newFetcher(cfg Config, client *http.Client, logger *zap.Logger) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		newBack: func() retry.Backoff {
			return retry.WithMaxRetries(cfg.Retries, retry.NewFibonacci(cfg.Backoff))
		},
		logger: logger,
	}
}

// get fetches url, retrying 5xx, 429 and transport errors with Fibonacci
// backoff. Other statuses fail at once.
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	return retry.DoValue(ctx, f.newBack(), func(ctx context.Context) ([]byte, error) {
		attempt++
		body, err := f.once(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		f.logger.Debug("crawl.fetch.retry", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		return nil, retry.RetryableError(err)
	})
}

func (f *fetcher) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			f.logger.Debug("crawl.fetch.close_error", zap.String("url", url), zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if isGzip(body) {
		return gunzip(body)
	}
	return body, nil
}

func isGzip(body []byte) bool {
	return len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxBody))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}
