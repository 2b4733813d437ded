package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastHTTPFetcher(maxRetries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{MaxRetries: maxRetries, RequestsPerSec: 100})
}

func TestHTTPFetcher_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "transit-crime-cli/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := fastHTTPFetcher(1)
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestHTTPFetcher_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := fastHTTPFetcher(3)
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, _ := io.ReadAll(body)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := fastHTTPFetcher(1)
	_, err := f.Download(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPFetcher_DownloadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("whole body"))
	}))
	defer srv.Close()

	f := fastHTTPFetcher(1)
	data, err := f.DownloadAll(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "whole body", string(data))
}

func TestForURL(t *testing.T) {
	httpF := fastHTTPFetcher(1)
	ftpF := NewFTPFetcher(FTPOptions{})

	f, err := ForURL("https://example.org/data.csv", httpF, ftpF)
	require.NoError(t, err)
	assert.Same(t, httpF, f)

	f, err = ForURL("ftp://mirror.example.org/data.csv", httpF, ftpF)
	require.NoError(t, err)
	assert.Same(t, ftpF, f)

	_, err = ForURL("gopher://example.org/x", httpF, ftpF)
	assert.Error(t, err)
}
