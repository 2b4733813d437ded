package arcgis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-analytics/transit-crime-cli/internal/fetcher"
)

func pointFeature(id int) string {
	return fmt.Sprintf(`{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [174.7, -36.8]},
		"properties": {"OBJECTID": %d}
	}`, id)
}

// featureServer fakes the paginated query endpoint over n point features.
func featureServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("returnCountOnly") == "true" {
			fmt.Fprintf(w, `{"count": %d}`, n)
			return
		}
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		count, _ := strconv.Atoi(q.Get("resultRecordCount"))

		var page []string
		for i := offset; i < n && i < offset+count; i++ {
			page = append(page, pointFeature(i))
		}
		fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s]}`, strings.Join(page, ","))
	}))
}

func newTestClient(pageSize int) *Client {
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, RequestsPerSec: 100})
	return NewClient(httpF, pageSize)
}

func TestCount(t *testing.T) {
	srv := featureServer(t, 42)
	defer srv.Close()

	c := newTestClient(10)
	n, err := c.Count(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestFetchAll_Paged(t *testing.T) {
	srv := featureServer(t, 5)
	defer srv.Close()

	c := newTestClient(2)
	features, err := c.FetchAll(context.Background(), srv.URL, []string{"OBJECTID"})
	require.NoError(t, err)
	require.Len(t, features, 5)

	// Pages arrive in offset order.
	assert.Equal(t, "0", property(features[0], "OBJECTID"))
	assert.Equal(t, "4", property(features[4], "OBJECTID"))
}

func TestFetchAll_EmptyLayer(t *testing.T) {
	srv := featureServer(t, 0)
	defer srv.Close()

	c := newTestClient(10)
	features, err := c.FetchAll(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Empty(t, features)
}

// failAfterFetcher serves pages until a cutoff, then errors.
type failAfterFetcher struct {
	inner    fetcher.Fetcher
	failFrom int
	calls    int
}

func (f *failAfterFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	f.calls++
	if f.calls > f.failFrom {
		return nil, eris.New("boom")
	}
	return f.inner.Download(ctx, url)
}

func TestFetchAll_PartialOnPageFailure(t *testing.T) {
	srv := featureServer(t, 6)
	defer srv.Close()

	// Call 1 is the count, calls 2-3 are pages; the third page fails.
	inner := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, RequestsPerSec: 100})
	c := NewClient(&failAfterFetcher{inner: inner, failFrom: 3}, 2)

	features, err := c.FetchAll(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, features, 4)
}

func TestFetchAll_CountFailure(t *testing.T) {
	inner := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, RequestsPerSec: 100})
	c := NewClient(&failAfterFetcher{inner: inner, failFrom: 0}, 2)

	_, err := c.FetchAll(context.Background(), "http://unused.invalid", nil)
	assert.Error(t, err)
}
