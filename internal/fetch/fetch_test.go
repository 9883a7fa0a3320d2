package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "billparse/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	f := NewHTTP(Config{UserAgent: "billparse/test"})
	doc, err := f.Fetch(context.Background(), srv.URL+"/bill.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, []byte("%PDF-1.4 body"), doc.Data)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTP(Config{Attempts: 2, RetryDelay: time.Millisecond})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(doc.Data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTP(Config{Attempts: 3, RetryDelay: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewHTTP(Config{MaxBytes: 16}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := NewHTTP(Config{})
	for _, u := range []string{"", "ftp://example.com/a.pdf", "not a url", "http://"} {
		_, err := f.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	_, err := NewHTTP(Config{Timeout: time.Second}).Fetch(context.Background(), "http://127.0.0.1:1/bill.png")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bill.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	doc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)

	_, err = ReadFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/bill.pdf"))
	assert.False(t, IsURL("./bill.pdf"))
}
