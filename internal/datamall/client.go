// Package datamall is a client for the LTA DataMall open-data API.
package datamall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bluele/gcache"
)

// PageSize is the number of records DataMall returns per page.
const PageSize = 500

// Dataset names of the paged endpoints.
const (
	BusStopsDataset    = "BusStops"
	BusRoutesDataset   = "BusRoutes"
	BusServicesDataset = "BusServices"
)

// GeospatialEndpoint serves static dataset links selected by an ID parameter.
const GeospatialEndpoint = "GeospatialWholeIsland"

// Passenger volume endpoints serve monthly archive links selected by a Date
// parameter in YYYYMM form.
const (
	StopVolumeEndpoint = "PV/Bus"
	ODVolumeEndpoint   = "PV/ODBus"
)

// ErrNoLink is returned when a static dataset response carries no download link.
var ErrNoLink = errors.New("datamall: no download link")

// StatusError reports a non-200 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("datamall: %s returned status %d", e.URL, e.Status)
}

// Client fetches DataMall datasets. Decoded datasets are cached in memory
// for the configured TTL.
type Client struct {
	baseURL    string
	accountKey string
	maxPages   int
	client     *http.Client
	cache      gcache.Cache
	logger     *slog.Logger
}

// NewClient creates a DataMall client. maxPages caps paging; 0 pages until
// a short page is returned.
func NewClient(baseURL, accountKey string, maxPages int, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		accountKey: accountKey,
		maxPages:   maxPages,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  gcache.New(64).LRU().Expiration(ttl).Build(),
		logger: logger,
	}
}

// BusStops fetches every bus stop.
func (c *Client) BusStops(ctx context.Context) ([]BusStop, error) {
	return fetchAll[BusStop](ctx, c, BusStopsDataset)
}

// BusRoutes fetches every bus route record.
func (c *Client) BusRoutes(ctx context.Context) ([]BusRoute, error) {
	return fetchAll[BusRoute](ctx, c, BusRoutesDataset)
}

// BusServices fetches every bus service.
func (c *Client) BusServices(ctx context.Context) ([]BusService, error) {
	return fetchAll[BusService](ctx, c, BusServicesDataset)
}

// fetchAll pages through a dataset with $skip in multiples of PageSize.
// Paging stops at the first short page, at the page cap, or at the first
// non-200 page after the first; a failing first page is an error.
func fetchAll[T any](ctx context.Context, c *Client, dataset string) ([]T, error) {
	if cached, err := c.cache.Get(dataset); err == nil {
		return cached.([]T), nil
	}

	var all []T
	for page := 0; c.maxPages == 0 || page < c.maxPages; page++ {
		var env envelope[T]
		err := c.getJSON(ctx, dataset, url.Values{"$skip": {strconv.Itoa(page * PageSize)}}, &env)
		var se *StatusError
		if errors.As(err, &se) && page > 0 {
			c.logger.Warn("datamall paging stopped", "dataset", dataset, "page", page, "status", se.Status)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", dataset, page, err)
		}
		all = append(all, env.Value...)
		if len(env.Value) < PageSize {
			break
		}
	}

	c.logger.Info("datamall dataset fetched", "dataset", dataset, "records", len(all))
	c.cache.Set(dataset, all)
	return all, nil
}

// StaticDataset resolves the download link of a static dataset and returns
// the archive it points to.
func (c *Client) StaticDataset(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var env envelope[datasetLink]
	if err := c.getJSON(ctx, endpoint, params, &env); err != nil {
		return nil, fmt.Errorf("dataset link %s: %w", endpoint, err)
	}
	if len(env.Value) == 0 || env.Value[0].Link == "" {
		return nil, ErrNoLink
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.Value[0].Link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: env.Value[0].Link, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	c.logger.Info("datamall static dataset downloaded", "endpoint", endpoint, "bytes", len(data))
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("AccountKey", c.accountKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: u, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
