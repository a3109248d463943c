package datamall

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitnet/internal/logging"
)

// pagedServer serves n synthetic bus stops in pages of PageSize.
func pagedServer(t *testing.T, n int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "secret", r.Header.Get("AccountKey"))
		assert.Equal(t, "/BusStops", r.URL.Path)

		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		var page []BusStop
		for i := skip; i < n && i < skip+PageSize; i++ {
			page = append(page, BusStop{BusStopCode: fmt.Sprintf("%05d", i), Latitude: 1.3, Longitude: 103.8})
		}
		json.NewEncoder(w).Encode(envelope[BusStop]{Value: page})
	}))
}

func TestFetchAll_PagesUntilShortPage(t *testing.T) {
	var hits atomic.Int32
	srv := pagedServer(t, 1200, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0, time.Minute, logging.Discard())
	got, err := c.BusStops(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 1200)
	assert.Equal(t, "01199", got[1199].BusStopCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAll_ExactMultipleNeedsEmptyPage(t *testing.T) {
	var hits atomic.Int32
	srv := pagedServer(t, 1000, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0, time.Minute, logging.Discard())
	got, err := c.BusStops(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAll_PageCap(t *testing.T) {
	var hits atomic.Int32
	srv := pagedServer(t, 5000, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 2, time.Minute, logging.Discard())
	got, err := c.BusStops(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchAll_CachesResult(t *testing.T) {
	var hits atomic.Int32
	srv := pagedServer(t, 10, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0, time.Minute, logging.Discard())
	_, err := c.BusStops(context.Background())
	require.NoError(t, err)
	_, err = c.BusStops(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchAll_StatusErrors(t *testing.T) {
	t.Run("first page fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "bad", 0, time.Minute, logging.Discard())
		_, err := c.BusRoutes(context.Background())

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.Status)
	})

	t.Run("later page stops paging", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("$skip") != "0" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			page := make([]BusRoute, PageSize)
			json.NewEncoder(w).Encode(envelope[BusRoute]{Value: page})
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "k", 0, time.Minute, logging.Discard())
		got, err := c.BusRoutes(context.Background())

		require.NoError(t, err)
		assert.Len(t, got, PageSize)
	})
}

func TestBusRoute_Row(t *testing.T) {
	d := 1.5
	row := BusRoute{ServiceNo: "10", Operator: "SBST", Direction: 2, StopSequence: 3, BusStopCode: "75009", Distance: &d}.Row()
	assert.Equal(t, "2", row.Direction)
	assert.Equal(t, "3", row.StopSequence)
	assert.Equal(t, "1.5", row.Distance)

	row = BusRoute{ServiceNo: "10", Direction: 1, StopSequence: 1, BusStopCode: "75009"}.Row()
	assert.Empty(t, row.Distance)
}

func TestBusStop_Record(t *testing.T) {
	rec := BusStop{BusStopCode: "01012", RoadName: "Victoria St", Description: "Hotel Grand Pacific", Latitude: 1.29684, Longitude: 103.85253}.Record()
	assert.Equal(t, "01012", rec.Code)
	assert.Equal(t, "Hotel Grand Pacific", rec.Name)
	assert.Equal(t, "Victoria St", rec.Road)
	assert.Equal(t, "103.85253", rec.X)
	assert.Equal(t, "1.29684", rec.Y)
}

func TestStaticDataset(t *testing.T) {
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	f, err := zw.Create("stations.csv")
	require.NoError(t, err)
	f.Write([]byte("STN_NAME,STN_NO\nJurong East,NS1\n"))
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/GeospatialWholeIsland", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TrainStation", r.URL.Query().Get("ID"))
		json.NewEncoder(w).Encode(envelope[datasetLink]{Value: []datasetLink{{Link: srv.URL + "/files/stations.zip"}}})
	})
	mux.HandleFunc("/files/stations.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive.Bytes())
	})
	mux.HandleFunc("/Empty", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":[]}`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "k", 0, time.Minute, logging.Discard())

	data, err := c.StaticDataset(context.Background(), "GeospatialWholeIsland", url.Values{"ID": {"TrainStation"}})
	require.NoError(t, err)
	assert.Equal(t, archive.Bytes(), data)

	_, err = c.StaticDataset(context.Background(), "Empty", nil)
	assert.ErrorIs(t, err, ErrNoLink)
}
