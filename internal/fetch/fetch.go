// Package fetch downloads source documents.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrTooLarge is returned when a document exceeds the size cap.
var ErrTooLarge = errors.New("document exceeds size limit")

// ErrInvalidURL is returned for non-http(s) or unparsable URLs.
var ErrInvalidURL = errors.New("invalid document url")

// Document is the raw fetched content.
type Document struct {
	Data        []byte
	ContentType string
	Source      string
}

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// StatusError is an upstream non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Config configures the HTTP fetcher.
type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	Attempts   uint
	RetryDelay time.Duration
	UserAgent  string
	Client     *http.Client
	Logger     *slog.Logger
}

// HTTPFetcher downloads over HTTP with a bounded retry on transient failures.
type HTTPFetcher struct {
	client     *http.Client
	maxBytes   int64
	attempts   uint
	retryDelay time.Duration
	userAgent  string
	logger     *slog.Logger
}

// NewHTTP creates an HTTPFetcher.
func NewHTTP(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 << 20
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPFetcher{
		client:     cfg.Client,
		maxBytes:   cfg.MaxBytes,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
		logger:     cfg.Logger,
	}
}

// Fetch downloads rawURL. 4xx responses and oversize bodies are not retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	var doc *Document
	err = retry.Do(
		func() error {
			d, err := f.get(ctx, u.String())
			if err != nil {
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("retrying document download", "attempt", n+1, "url", u.Redacted(), "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, serr
		}
		return nil, retry.Unrecoverable(serr)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	f.logger.Debug("document downloaded", "bytes", len(data), "content_type", ct)
	return &Document{Data: data, ContentType: ct, Source: rawURL}, nil
}

// ReadFile loads a local document, guessing the content type from the
// extension and then the content.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided document path is expected
	if err != nil {
		return nil, err
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Document{Data: data, ContentType: ct, Source: path}, nil
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
