// Package fetcher downloads source tables over HTTP or FTP and parses the
// tabular crime extracts (CSV and XLSX).
package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// ForURL returns a fetcher matching the URL scheme.
func ForURL(rawURL string, httpF *HTTPFetcher, ftpF *FTPFetcher) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return httpF, nil
	case "ftp":
		return ftpF, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
