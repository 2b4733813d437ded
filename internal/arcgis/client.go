// Package arcgis reads feature layers from an ArcGIS FeatureServer using the
// paginated query endpoint. The service caps each response, so a layer is
// materialized by asking for the total count first and then walking
// resultOffset until every record has been seen. A failed or empty page
// truncates the fetched set rather than failing the run; completeness of the
// remote source is explicitly not guaranteed.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/harbour-analytics/transit-crime-cli/internal/fetcher"
)

// Client pages feature layers out of a FeatureServer.
type Client struct {
	fetcher  fetcher.Fetcher
	pageSize int
}

// NewClient creates a Client. pageSize must not exceed the service's
// maxRecordCount or pages silently shrink.
func NewClient(f fetcher.Fetcher, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 2000
	}
	return &Client{fetcher: f, pageSize: pageSize}
}

// Count asks the layer for its total record count.
func (c *Client) Count(ctx context.Context, baseURL string) (int, error) {
	countURL := fmt.Sprintf("%s/query?where=1%%3D1&returnCountOnly=true&f=json", strings.TrimRight(baseURL, "/"))

	body, err := c.fetcher.Download(ctx, countURL)
	if err != nil {
		return 0, eris.Wrap(err, "arcgis: fetch count")
	}
	defer body.Close() //nolint:errcheck

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return 0, eris.Wrap(err, "arcgis: decode count")
	}
	return out.Count, nil
}

// FetchAll pages through the layer and returns every feature it could get.
// Pages that fail or come back empty end the walk early with the features
// collected so far.
func (c *Client) FetchAll(ctx context.Context, baseURL string, outFields []string) ([]*geojson.Feature, error) {
	total, err := c.Count(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		zap.L().Warn("arcgis: layer reports zero records", zap.String("url", baseURL))
		return nil, nil
	}

	fieldsParam := "*"
	if len(outFields) > 0 {
		fieldsParam = strings.Join(outFields, ",")
	}

	var features []*geojson.Feature
	offset := 0
	for offset < total {
		page, err := c.fetchPage(ctx, baseURL, fieldsParam, offset)
		if err != nil {
			zap.L().Error("arcgis: page fetch failed, keeping partial set",
				zap.String("url", baseURL),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			break
		}
		if len(page) == 0 {
			zap.L().Warn("arcgis: empty page, stopping early",
				zap.String("url", baseURL),
				zap.Int("offset", offset),
			)
			break
		}

		features = append(features, page...)
		offset += len(page)

		zap.L().Debug("arcgis: page fetched",
			zap.String("url", baseURL),
			zap.Int("offset", offset),
			zap.Int("total", total),
		)
	}

	zap.L().Info("arcgis: layer fetched",
		zap.String("url", baseURL),
		zap.Int("features", len(features)),
		zap.Int("reported_total", total),
	)
	return features, nil
}

func (c *Client) fetchPage(ctx context.Context, baseURL, fieldsParam string, offset int) ([]*geojson.Feature, error) {
	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("outFields", fieldsParam)
	params.Set("resultOffset", fmt.Sprintf("%d", offset))
	params.Set("resultRecordCount", fmt.Sprintf("%d", c.pageSize))
	params.Set("f", "geojson")
	params.Set("inSR", "4326")
	params.Set("outSR", "4326")

	queryURL := fmt.Sprintf("%s/query?%s", strings.TrimRight(baseURL, "/"), params.Encode())

	body, err := c.fetcher.Download(ctx, queryURL)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: fetch page")
	}
	defer body.Close() //nolint:errcheck

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(body).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "arcgis: decode page")
	}
	return fc.Features, nil
}
