// Package lookup resolves the secondary data attached to catalog records: the
// storefront seller URL and the universal-link paths the seller publishes.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	collyfetcher "github.com/JakeFAU/appcatalog/internal/fetcher/colly"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/metrics"
	"github.com/JakeFAU/appcatalog/internal/policy/ratelimit"
)

// DefaultAssociationScheme is used to reach the seller host.
const DefaultAssociationScheme = "https"

// Waiter applies the pre-request delay.
type Waiter interface {
	Wait(ctx context.Context) time.Duration
}

// Config controls the lookup endpoints.
type Config struct {
	BaseURL           string
	AssociationScheme string
}

// SellerOutcome is the result of a seller lookup. SellerURL is nil whenever
// Failure is set.
type SellerOutcome struct {
	SellerURL *string
	Failure   catalog.FailureReason
}

// LinkOutcome is the result of an association probe.
type LinkOutcome struct {
	Links   []string
	Path    string
	Failure catalog.FailureReason
}

// Client performs seller lookups and association probes. It implements catalog.Enricher.
type Client struct {
	fetcher catalog.Fetcher
	backoff Waiter
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Client. backoff and limiter may be nil.
func New(fetcher catalog.Fetcher, backoff Waiter, limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AssociationScheme == "" {
		cfg.AssociationScheme = DefaultAssociationScheme
	}
	return &Client{
		fetcher: fetcher,
		backoff: backoff,
		limiter: limiter,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
}

type lookupResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		SellerURL string `json:"sellerUrl"`
	} `json:"results"`
}

// SellerURL builds the lookup address for id.
func (c *Client) SellerURL(id string) string {
	return c.cfg.BaseURL + "/lookup?id=" + url.QueryEscape(id)
}

// ResolveSeller waits the randomized delay and looks up the seller URL of id.
func (c *Client) ResolveSeller(ctx context.Context, id string) SellerOutcome {
	if c.backoff != nil {
		c.backoff.Wait(ctx)
	}
	if ctx.Err() != nil {
		return c.sellerFailure(id, catalog.ReasonCanceled, ctx.Err())
	}

	resp, err := c.fetcher.Fetch(ctx, catalog.FetchRequest{URL: c.SellerURL(id)})
	if err != nil {
		return c.sellerFailure(id, classify(ctx, err), err)
	}

	var payload lookupResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return c.sellerFailure(id, catalog.ReasonDecode, err)
	}
	if payload.ResultCount == 0 || len(payload.Results) == 0 {
		return c.sellerFailure(id, catalog.ReasonNotFound, nil)
	}
	seller := strings.TrimSpace(payload.Results[0].SellerURL)
	if seller == "" {
		return c.sellerFailure(id, catalog.ReasonNoSeller, nil)
	}

	metrics.ObserveLookup("ok")
	c.logger.Debug("seller resolved", zap.String("id", id), zap.String("seller_url", seller))
	return SellerOutcome{SellerURL: &seller}
}

// Enrich resolves the seller URL and then the universal links for one record.
func (c *Client) Enrich(ctx context.Context, id, bundleID string) catalog.EnrichmentResult {
	seller := c.ResolveSeller(ctx, id)
	links := c.ResolveUniversalLinks(ctx, seller.SellerURL, bundleID)
	return catalog.EnrichmentResult{
		SellerURL:       seller.SellerURL,
		UniversalLinks:  links.Links,
		SellerFailure:   seller.Failure,
		LinksFailure:    links.Failure,
		AssociationPath: links.Path,
	}
}

func (c *Client) sellerFailure(id string, reason catalog.FailureReason, err error) SellerOutcome {
	metrics.ObserveLookup(string(reason))
	fields := []zap.Field{zap.String("id", id), zap.String("reason", string(reason))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.logger.Debug("seller lookup failed", fields...)
	return SellerOutcome{Failure: reason}
}

func classify(ctx context.Context, err error) catalog.FailureReason {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return catalog.ReasonCanceled
	case collyfetcher.IsStatusError(err):
		return catalog.ReasonStatus
	default:
		return catalog.ReasonTransport
	}
}
