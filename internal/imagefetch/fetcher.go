package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// Config holds the configuration for the image fetcher
type Config struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
	MaxEntries    int
	// MaxBodyBytes caps a single portrait download.
	MaxBodyBytes  int
}

// DefaultConfig returns a Config with the reference defaults
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		RetryCount:    1,
		RetryWaitTime: 200 * time.Millisecond,
		MaxEntries:    256,
		MaxBodyBytes:  10 << 20,
	}
}

// Fetcher downloads portrait images and keeps their bytes for the lifetime of
// the process.
type Fetcher struct {
	client *resty.Client
	cache  *ByteCache
	logger *slog.Logger
}

// NewFetcher creates a fetcher backed by its own byte cache.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	return NewFetcherWithCache(cfg, NewByteCache(cfg.MaxEntries), logger)
}

// NewFetcherWithCache creates a fetcher that shares an existing byte cache.
func NewFetcherWithCache(cfg Config, cache *ByteCache, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(4 * cfg.RetryWaitTime).
		SetResponseBodyLimit(cfg.MaxBodyBytes).
		AddRetryCondition(shouldRetry)

	return &Fetcher{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// shouldRetry retries connection failures and 5xx responses. Timeouts and
// oversized bodies are final.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !isTimeout(err) && !errors.Is(err, resty.ErrResponseBodyTooLarge)
	}
	return resp != nil && resp.StatusCode() >= 500
}

// Fetch returns the raw bytes of the image at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := f.cache.Get(url); ok {
		return data, nil
	}

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(url)
	if err != nil {
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, domain.ErrImageTooLarge.WithError(fmt.Errorf("fetch %s: %w", url, err))
		}
		if isTimeout(err) {
			return nil, domain.ErrFetchTimeout.WithError(fmt.Errorf("fetch %s: %w", url, err))
		}
		return nil, domain.ErrFetchNetwork.WithError(fmt.Errorf("fetch %s: %w", url, err))
	}

	if resp.IsError() || resp.StatusCode() >= 300 {
		return nil, domain.ErrFetchNetwork.WithError(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode()))
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return nil, domain.ErrNotAnImage.WithError(fmt.Errorf("fetch %s: content type %q", url, contentType))
	}

	data := resp.Body()
	f.cache.Set(url, data)

	f.logger.Debug("portrait fetched",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
		slog.Duration("latency", time.Since(start)),
	)

	return data, nil
}

// Evict drops the cached bytes for url so the next Fetch downloads it again.
func (f *Fetcher) Evict(url string) {
	f.cache.Delete(url)
}

// CacheLen returns the number of cached images.
func (f *Fetcher) CacheLen() int {
	return f.cache.Len()
}

// ClearCache drops every cached image and returns how many were removed.
func (f *Fetcher) ClearCache() int {
	return f.cache.Clear()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
