// Package feed fetches ranked-feed pages and normalizes their entries into catalog records.
package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/metrics"
)

// DefaultPageLimit is the page size requested when a query does not set one.
const DefaultPageLimit = 100

// Waiter applies the pre-request delay.
type Waiter interface {
	Wait(ctx context.Context) time.Duration
}

// Config controls the feed endpoint.
type Config struct {
	BaseURL   string
	PageLimit int
}

// Client performs throttled ranked-feed requests. It implements catalog.FeedFetcher.
type Client struct {
	fetcher catalog.Fetcher
	backoff Waiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Client.
func New(fetcher catalog.Fetcher, backoff Waiter, cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	return &Client{
		fetcher: fetcher,
		backoff: backoff,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
}

// URL builds the feed page address for query.
func (c *Client) URL(query catalog.FeedQuery) string {
	limit := query.Limit
	if limit <= 0 {
		limit = c.cfg.PageLimit
	}
	return fmt.Sprintf("%s/%s/rss/%s/limit=%d/genre=%d/json",
		c.cfg.BaseURL,
		url.PathEscape(strings.ToLower(query.Country)),
		query.Ranking,
		limit,
		query.Genre,
	)
}

// Fetch waits the randomized delay, requests one feed page and returns the
// new records in it. Failures are logged and yield an empty slice.
func (c *Client) Fetch(ctx context.Context, query catalog.FeedQuery, seen *catalog.IDSet) []catalog.Record {
	target := c.URL(query)
	fields := []zap.Field{
		zap.String("country", query.Country),
		zap.Int("genre", query.Genre),
		zap.String("ranking", string(query.Ranking)),
	}

	if c.backoff != nil {
		delay := c.backoff.Wait(ctx)
		c.logger.Debug("feed backoff elapsed", append(fields, zap.Duration("delay", delay))...)
	}
	if ctx.Err() != nil {
		return nil
	}

	resp, err := c.fetcher.Fetch(ctx, catalog.FetchRequest{URL: target})
	if err != nil {
		metrics.ObserveFeedRequest(query.Country, "error", 0)
		c.logger.Warn("feed request failed", append(fields, zap.String("url", target), zap.Error(err))...)
		return nil
	}

	records, entries, err := Parse(resp.Body, seen)
	if err != nil {
		metrics.ObserveFeedRequest(query.Country, "decode_error", 0)
		c.logger.Warn("feed decode failed", append(fields, zap.String("url", target), zap.Error(err))...)
		return nil
	}
	if entries == 0 {
		metrics.ObserveFeedRequest(query.Country, "empty", 0)
		c.logger.Info("no entries found", append(fields, zap.String("url", target))...)
		return nil
	}

	metrics.ObserveFeedRequest(query.Country, "ok", len(records))
	c.logger.Debug("feed page parsed",
		append(fields, zap.Int("entries", entries), zap.Int("accepted", len(records)))...)
	return records
}
