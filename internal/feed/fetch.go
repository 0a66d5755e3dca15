package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "eventmap/internal/log"
	"eventmap/internal/model"
	"eventmap/internal/traffic"
)

// ErrNotModifiedNoCache is returned when the server answers 304 but no
// body has been cached yet.
var ErrNotModifiedNoCache = errors.New("feed: 304 Not Modified but no cached body available")

// Result is the outcome of fetching one URL.
type Result struct {
	URL       string
	Body      []byte
	FromCache bool // true if the body came from cache (304 or fallback)
}

// cacheEntry holds HTTP validators and the last good body for one URL.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
	updatedAt    time.Time
}

// Options configures a Client.
type Options struct {
	EventsURL string
	DataURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client fetches the event and network feeds with conditional requests.
// The validator cache lives in memory only.
type Client struct {
	client *http.Client
	opts   Options

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a feed Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		cache:  make(map[string]cacheEntry),
	}
}

// FetchEvents downloads and decodes the event feed. Malformed records are
// dropped and logged; only an undecodable body is an error.
func (c *Client) FetchEvents(ctx context.Context) ([]model.RawEvent, DecodeStats, error) {
	res, err := c.Fetch(ctx, c.opts.EventsURL)
	if err != nil {
		return nil, DecodeStats{}, err
	}
	events, stats, err := DecodeEvents(res.Body)
	if err != nil {
		return nil, stats, err
	}
	if stats.Dropped() > 0 {
		appLog.Warn("event feed records dropped",
			"url", redactURL(res.URL),
			"no_airports", stats.NoAirports,
			"bad_time", stats.BadTime,
			"end_before_start", stats.EndBeforeStart,
			"kept", len(events),
		)
	}
	return events, stats, nil
}

// FetchTraffic downloads and decodes the live network feed.
func (c *Client) FetchTraffic(ctx context.Context) (traffic.Data, error) {
	res, err := c.Fetch(ctx, c.opts.DataURL)
	if err != nil {
		return traffic.Data{}, err
	}
	return DecodeTraffic(res.Body)
}

// Fetch performs a GET honoring ETag and Last-Modified. On network errors,
// non-OK statuses or a truncated body the last good body is reused when
// available. There is
// no retry; the next scheduled refresh tries again.
func (c *Client) Fetch(ctx context.Context, u string) (Result, error) {
	if u == "" {
		return Result{}, errors.New("feed: URL is empty")
	}

	c.mu.Lock()
	meta := c.cache[u]
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if meta.etag != "" {
		req.Header.Set("If-None-Match", meta.etag)
	}
	if meta.lastModified != "" {
		req.Header.Set("If-Modified-Since", meta.lastModified)
	}

	appLog.Debug("feed fetch start", "url", redactURL(u))

	resp, err := c.client.Do(req)
	if err != nil {
		if len(meta.body) > 0 {
			appLog.Error("feed fetch network error, using cached body", err, "url", redactURL(u))
			return Result{URL: u, Body: meta.body, FromCache: true}, nil
		}
		return Result{}, fmt.Errorf("feed: get %s: %w", redactURL(u), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			if len(meta.body) > 0 {
				appLog.Error("feed body read failed, using cached body", readErr, "url", redactURL(u))
				return Result{URL: u, Body: meta.body, FromCache: true}, nil
			}
			return Result{}, fmt.Errorf("feed: read %s: %w", redactURL(u), readErr)
		}

		c.mu.Lock()
		c.cache[u] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
			updatedAt:    time.Now().UTC(),
		}
		c.mu.Unlock()

		appLog.Debug("feed fetch success", "url", redactURL(u), "status", resp.StatusCode, "bytes", len(body))
		return Result{URL: u, Body: body}, nil

	case http.StatusNotModified:
		if len(meta.body) == 0 {
			return Result{}, ErrNotModifiedNoCache
		}
		appLog.Debug("feed fetch not modified; using cache", "url", redactURL(u))
		return Result{URL: u, Body: meta.body, FromCache: true}, nil

	default:
		if len(meta.body) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(u), "status", resp.StatusCode)
			return Result{URL: u, Body: meta.body, FromCache: true}, nil
		}
		return Result{}, fmt.Errorf("feed: get %s: %s", redactURL(u), resp.Status)
	}
}

// redactURL hides path and query of a feed URL for logging purposes.
func redactURL(u string) string {
	p, err := url.Parse(u)
	if err != nil || p.Host == "" {
		return "feed://...(redacted)"
	}
	if p.Path == "" && p.RawQuery == "" {
		return p.Scheme + "://" + p.Host
	}
	return p.Scheme + "://" + p.Host + "/...(redacted)"
}
