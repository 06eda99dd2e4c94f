// Package fetch downloads RIR statistics files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

const (
	maxResponseBytes = 512 << 20
	userAgent        = "rirblocks/1.0"
)

// Cache stores downloaded source texts by URL.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Options struct {
	Attempts        uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultOptions() Options {
	return Options{
		Attempts:        10,
		InitialInterval: time.Second,
		MaxInterval:     2 * time.Minute,
	}
}

type Client struct {
	http   *http.Client
	logger *slog.Logger
	cache  Cache
	opts   Options
	group  singleflight.Group
}

// NewClient returns a fetcher. cache may be nil.
func NewClient(httpClient *http.Client, logger *slog.Logger, cache Cache, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	return &Client{
		http:   httpClient,
		logger: logger,
		cache:  cache,
		opts:   opts,
	}
}

// Fetch returns the body of url, from the cache when present, otherwise
// downloading it with retries. Concurrent calls for one url share a download.
// The shared download is detached from each caller's cancellation: a caller
// that gives up returns ctx.Err() while the download continues for the others
// and still fills the cache.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := c.group.DoChan(url, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), url)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	if c.cache != nil {
		text, ok, err := c.cache.Get(ctx, url)
		if err != nil {
			c.logger.WarnContext(ctx, "source cache read failed", "url", url, "err", err.Error())
		} else if ok {
			c.logger.DebugContext(ctx, "source served from cache", "url", url, "size", humanize.Bytes(uint64(len(text))))
			return text, nil
		}
	}

	text, err := c.download(ctx, url)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, url, text); err != nil {
			c.logger.WarnContext(ctx, "source cache write failed", "url", url, "err", err.Error())
		}
	}
	return text, nil
}

func (c *Client) download(ctx context.Context, url string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.MaxElapsedTime = 0

	var (
		text    string
		attempt uint64
	)
	op := func() error {
		attempt++
		var err error
		text, err = c.get(ctx, url)
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.logger.WarnContext(ctx, "source download failed",
			"url", url,
			"attempt", attempt,
			"attempts", c.opts.Attempts,
			"retry_in", delay.Round(time.Millisecond).String(),
			"err", err.Error(),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.Attempts-1), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("fetch %s after %d attempts: %w", url, attempt, err)
	}
	return text, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
		if retryableStatus(resp.StatusCode) {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if len(content) > maxResponseBytes {
		return "", backoff.Permanent(fmt.Errorf("response exceeds %s", humanize.Bytes(maxResponseBytes)))
	}
	return string(content), nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// FetchAll downloads every url concurrently. Failed sources are logged and
// left out; the result keeps the order of urls.
func (c *Client) FetchAll(ctx context.Context, urls []string) []domain.Source {
	texts := make([]string, len(urls))
	ok := make([]bool, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			start := time.Now()
			text, err := c.Fetch(gctx, url)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				c.logger.ErrorContext(gctx, "source unavailable", "url", url, "err", err.Error())
				return nil
			}
			c.logger.InfoContext(gctx, "source fetched",
				"url", url,
				"size", humanize.Bytes(uint64(len(text))),
				"took", time.Since(start).Round(time.Millisecond).String(),
			)
			texts[i] = text
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.WarnContext(ctx, "fetching sources interrupted", "err", err.Error())
	}

	sources := make([]domain.Source, 0, len(urls))
	for i, url := range urls {
		if ok[i] {
			sources = append(sources, domain.Source{Name: url, Text: texts[i]})
		}
	}
	return sources
}
