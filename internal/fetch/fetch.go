// Package fetch downloads compressed dataset distributions with bounded
// retry and exponential backoff.
//
// Design goals:
//
//   - Handle transient failures (network errors, 5xx, 429) with backoff;
//     treat every other status as terminal.
//   - Never leave a truncated file behind: the body streams into a temp file
//     that is renamed into place only on success and removed between
//     attempts, so an interrupted run cannot poison the idempotent skip.
//   - Respect context cancellation during requests and backoff waits.
//   - Be easy to test by injecting a custom RoundTripper and sleep function.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/opendatalabcz/emissions-etl/internal/catalog"
)

// DownloadError is the terminal failure of one dataset download, carrying
// the dataset name and how many attempts were spent on it.
type DownloadError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fetch: download %q failed after %d attempt(s): %v", e.Name, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Config configures the downloader.
//
// Zero values are given sensible defaults:
//   - Timeout:        60s
//   - MaxAttempts:    10
//   - InitialBackoff: 500ms
//   - MaxBackoff:     30s
type Config struct {
	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxAttempts bounds the total number of attempts per dataset,
	// the initial request included.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry; each subsequent
	// retry doubles it up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff duration.
	MaxBackoff time.Duration

	// Transport is an optional custom RoundTripper for tests.
	Transport http.RoundTripper

	// OnRetry, when set, is called with the upcoming attempt number and the
	// dataset name before each retry wait. Console narration hooks in here.
	OnRetry func(attempt int, name string)
}

// Client downloads datasets with retry and backoff.
type Client struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	onRetry        func(attempt int, name string)

	// sleep is injectable to make tests fast and deterministic.
	sleep func(time.Duration)
}

// NewClient constructs a Client from cfg, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		onRetry:        cfg.OnRetry,
		sleep:          time.Sleep,
	}
}

// Download fetches ds into dest. When dest already exists the download is
// skipped and (true, nil) is returned. Transient failures are retried up to
// the attempt bound; exhausting it, or hitting a non-retryable status,
// returns a *DownloadError.
func (c *Client) Download(ctx context.Context, ds catalog.Dataset, dest string) (skipped bool, err error) {
	if _, err := os.Stat(dest); err == nil {
		return true, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		retryable, err := c.attempt(ctx, ds.DownloadURL, dest)
		if err == nil {
			return false, nil
		}
		lastErr = err
		if !retryable {
			return false, &DownloadError{Name: ds.Name, Attempts: attempt, Err: err}
		}
		if attempt == c.maxAttempts {
			break
		}
		if c.onRetry != nil {
			c.onRetry(attempt+1, ds.Name)
		}
		if err := c.wait(ctx, backoffDuration(c.initialBackoff, attempt-1, c.maxBackoff)); err != nil {
			return false, err
		}
	}
	return false, &DownloadError{Name: ds.Name, Attempts: c.maxAttempts, Err: lastErr}
}

// attempt performs one GET into a temp file next to dest, renaming on
// success. The temp file never survives a failed attempt.
func (c *Client) attempt(ctx context.Context, url, dest string) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return isRetryableStatus(resp.StatusCode), fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp*")
	if err != nil {
		return false, fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return true, fmt.Errorf("stream body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return false, fmt.Errorf("rename: %w", err)
	}
	return false, nil
}

// wait sleeps for d, aborting early if ctx is canceled.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		c.sleep(d)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// isRetryableStatus reports whether the given HTTP status code should trigger
// a retry. Intentionally conservative: 5xx and 429 are treated as transient;
// everything else is final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns the exponential backoff duration for the given
// attempt number (0-based retry index), clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}
