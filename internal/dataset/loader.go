package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxPayload caps the dataset body read from the network.
const maxPayload = 8 << 20

// Loader fetches the dataset once per game.
type Loader interface {
	Load(ctx context.Context) (*Collection, error)
}

// HTTPConfig configures an HTTPLoader.
type HTTPConfig struct {
	URL string

	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay defaults to 250ms if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff. Defaults to 5s if zero.
	MaxRetryDelay time.Duration

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// HTTPLoader fetches the dataset JSON over HTTP, retrying transient failures.
type HTTPLoader struct {
	cfg HTTPConfig
}

func NewHTTPLoader(cfg HTTPConfig) *HTTPLoader {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 250 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPLoader{cfg: cfg}
}

func (l *HTTPLoader) Load(ctx context.Context) (*Collection, error) {
	backoff := retry.NewExponential(l.cfg.BaseRetryDelay)
	backoff = retry.WithCappedDuration(l.cfg.MaxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(l.cfg.MaxRetries), backoff)

	var body []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		b, err := l.fetch(ctx)
		if err != nil {
			l.cfg.Logger.Warn("dataset fetch failed", "url", l.cfg.URL, "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: fetch %s: %w", l.cfg.URL, err)
	}
	coll, _, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return coll, nil
}

func (l *HTTPLoader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	return b, nil
}

// FileLoader reads the dataset from a local JSON file.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", l.Path, err)
	}
	coll, _, err := Parse(b)
	if err != nil {
		return nil, err
	}
	return coll, nil
}

// Static serves an already decoded collection.
type Static struct {
	Collection *Collection
}

func (s Static) Load(ctx context.Context) (*Collection, error) {
	if s.Collection == nil || len(s.Collection.Sets) == 0 {
		return nil, fmt.Errorf("%w: no sets", ErrMalformed)
	}
	return s.Collection, nil
}
