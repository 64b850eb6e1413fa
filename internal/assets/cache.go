// Package assets implements the static-asset cache of the background
// context: a versioned on-disk cache filled at install time and served
// cache-first, with stale versions of the cache removed on activation.
package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rescuemate/alertsync/internal/pkg/logger"
	"github.com/rescuemate/alertsync/internal/pkg/metrics"
)

const cachePrefix = "alertsync-"

// Config holds the asset cache configuration
type Config struct {
	Root       string       // directory holding versioned cache dirs
	Version    string       // version tag, part of the cache name
	Origin     string       // base URL assets are fetched from
	Paths      []string     // known static asset paths
	HTTPClient *http.Client // optional custom HTTP client
}

// Cache is a versioned cache of static assets
type Cache struct {
	root    string
	version string
	origin  string
	paths   map[string]struct{}
	http    *http.Client
	logger  *logger.Logger
}

// New creates an asset cache. The cache directory is created lazily on the
// first write.
func New(cfg Config, log *logger.Logger) *Cache {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	paths := make(map[string]struct{}, len(cfg.Paths))
	for _, p := range cfg.Paths {
		paths[normalize(p)] = struct{}{}
	}

	return &Cache{
		root:    cfg.Root,
		version: cfg.Version,
		origin:  strings.TrimRight(cfg.Origin, "/"),
		paths:   paths,
		http:    httpClient,
		logger:  log,
	}
}

// Name returns the versioned cache name
func (c *Cache) Name() string {
	return cachePrefix + c.version
}

func (c *Cache) dir() string {
	return filepath.Join(c.root, c.Name())
}

// Prefill fetches and stores every known asset. A failure for one asset is
// logged and skipped; it never aborts the rest of the installation.
func (c *Cache) Prefill(ctx context.Context) error {
	if err := os.MkdirAll(c.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	for p := range c.paths {
		if err := c.fill(ctx, p); err != nil {
			c.logger.WithError(err).Warnf("failed to cache %s, skipping", p)
		}
	}
	return nil
}

// CleanupStale deletes every sibling cache whose name differs from the
// current versioned name.
func (c *Cache) CleanupStale() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), cachePrefix) || e.Name() == c.Name() {
			continue
		}
		c.logger.With("cache", e.Name()).Info("deleting stale asset cache")
		if err := os.RemoveAll(filepath.Join(c.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether a request targets a known static asset and should
// be served cache-first. Everything else passes through to the network.
func (c *Cache) Matches(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := normalize(r.URL.Path)
	if _, ok := c.paths[p]; ok {
		return true
	}
	return strings.HasPrefix(p, "/assets/") ||
		strings.HasSuffix(p, ".js") ||
		strings.HasSuffix(p, ".css")
}

// ServeHTTP serves an asset cache-first: a cached copy wins, a miss falls
// back to the origin and stores a copy for next time when the origin
// responds OK.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := normalize(r.URL.Path)

	if body, err := os.ReadFile(c.entryPath(p)); err == nil {
		metrics.RecordAssetRequest("hit")
		w.Header().Set("Content-Type", contentType(p))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	metrics.RecordAssetRequest("miss")
	resp, err := c.fetch(r.Context(), p)
	if err != nil {
		c.logger.WithError(err).Warnf("origin fetch failed for %s", p)
		http.Error(w, "asset unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "asset unavailable", http.StatusBadGateway)
		return
	}

	if resp.StatusCode == http.StatusOK {
		if err := c.storeEntry(p, body); err != nil {
			c.logger.WithError(err).Warnf("failed to store cache copy of %s", p)
		}
	}

	w.Header().Set("Content-Type", contentType(p))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func (c *Cache) fill(ctx context.Context, p string) error {
	resp, err := c.fetch(ctx, p)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("origin returned %d for %s", resp.StatusCode, p)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return c.storeEntry(p, body)
}

func (c *Cache) fetch(ctx context.Context, p string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+p, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Cache) storeEntry(p string, body []byte) error {
	if err := os.MkdirAll(c.dir(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.entryPath(p), body, 0o644)
}

func (c *Cache) entryPath(p string) string {
	return filepath.Join(c.dir(), url.PathEscape(p))
}

func normalize(p string) string {
	if p == "" || p == "/" {
		return "/index.html"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func contentType(p string) string {
	if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
