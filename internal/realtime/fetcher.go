// Package realtime reads GTFS-realtime service alerts and derives the stops
// that are currently out of service.
package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxFeedSize bounds the alerts payload read into memory.
const maxFeedSize = 16 << 20

// Fetcher polls an alerts feed into a Store.
type Fetcher struct {
	url    string
	store  *Store
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher for the feed at url.
func NewFetcher(url string, store *Store, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		url:    url,
		store:  store,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "alerts"),
	}
}

// Start fetches immediately and then every interval until ctx is cancelled.
// Failed polls keep the previous alerts.
func (f *Fetcher) Start(ctx context.Context, interval time.Duration) {
	f.poll(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.poll(ctx)
		case <-ctx.Done():
			f.logger.Info("alerts fetcher stopped")
			return
		}
	}
}

func (f *Fetcher) poll(ctx context.Context) {
	if err := f.Fetch(ctx); err != nil {
		f.logger.Warn("fetch alerts failed", "error", err)
	}
}

// Fetch reads the feed once and replaces the stored alerts.
func (f *Fetcher) Fetch(ctx context.Context) error {
	body, err := f.download(ctx)
	if err != nil {
		return err
	}
	alerts, feedTime, err := Parse(body)
	if err != nil {
		return err
	}
	f.store.SetAlerts(alerts)
	f.logger.Info("alerts updated",
		"count", len(alerts),
		"closed_stops", len(f.store.ClosedStops()),
		"feed_time", feedTime)
	return nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create alerts request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alerts feed %s: status %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read alerts body: %w", err)
	}
	return body, nil
}
