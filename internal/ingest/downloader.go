package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// Downloader fetches a feed archive with conditional requests.
type Downloader struct {
	client  *http.Client
	url     string
	dir     string
	pattern string // temp file pattern, e.g. "gtfs-*.zip"
	logger  *slog.Logger
}

// NewDownloader creates a Downloader that stores archives from url under dir.
func NewDownloader(url, dir, pattern string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:  &http.Client{},
		url:     url,
		dir:     dir,
		pattern: pattern,
		logger:  logger,
	}
}

// Validators are the cache validators of a downloaded feed.
type Validators struct {
	LastModified string
	ETag         string
}

// Check sends a HEAD request with the stored validators and reports whether
// the feed changed.
func (d *Downloader) Check(ctx context.Context, prev Validators) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	if prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}
	if prev.ETag != "" {
		req.Header.Set("If-None-Match", prev.ETag)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("HEAD request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		d.logger.Info("feed not modified", "url", d.url)
		return false, nil
	}
	return true, nil
}

// Download fetches the archive into a temp file under the download dir.
// The caller removes the file.
func (d *Downloader) Download(ctx context.Context) (string, Validators, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", Validators{}, fmt.Errorf("create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return "", Validators{}, fmt.Errorf("create request: %w", err)
	}

	d.logger.Info("downloading feed", "url", d.url)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", Validators{}, fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", Validators{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(d.dir, d.pattern)
	if err != nil {
		return "", Validators{}, fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", Validators{}, fmt.Errorf("write file: %w", err)
	}

	v := Validators{
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
	}
	d.logger.Info("feed downloaded",
		"path", filepath.Base(tmpFile.Name()),
		"size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
	)
	return tmpFile.Name(), v, nil
}
