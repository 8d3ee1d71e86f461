package lookup

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/metrics"
)

// AssociationPaths are probed in order on the seller host.
var AssociationPaths = []string{
	"/.well-known/apple-app-site-association",
	"/apple-app-site-association",
}

type associationDocument struct {
	AppLinks struct {
		Details []associationDetail `json:"details"`
	} `json:"applinks"`
}

type associationDetail struct {
	AppID      string      `json:"appID"`
	AppIDs     []string    `json:"appIDs"`
	Paths      []string    `json:"paths"`
	Components []component `json:"components"`
}

type component struct {
	Path    string `json:"/"`
	Exclude bool   `json:"exclude"`
}

func (d associationDetail) matches(bundleID string) bool {
	if d.AppID != "" && strings.HasSuffix(d.AppID, bundleID) {
		return true
	}
	for _, id := range d.AppIDs {
		if strings.HasSuffix(id, bundleID) {
			return true
		}
	}
	return false
}

// patterns returns the legacy path list, or the component patterns when the
// detail uses the newer format. Excluded components use the legacy "NOT " prefix.
func (d associationDetail) patterns() []string {
	out := make([]string, 0, len(d.Paths)+len(d.Components))
	out = append(out, d.Paths...)
	for _, comp := range d.Components {
		if comp.Path == "" {
			continue
		}
		if comp.Exclude {
			out = append(out, "NOT "+comp.Path)
			continue
		}
		out = append(out, comp.Path)
	}
	return out
}

// ResolveUniversalLinks probes the association paths on the seller host and
// returns the patterns of the first document declaring bundleID. A missing
// seller returns immediately without any request.
func (c *Client) ResolveUniversalLinks(ctx context.Context, sellerURL *string, bundleID string) LinkOutcome {
	if sellerURL == nil || strings.TrimSpace(*sellerURL) == "" {
		return LinkOutcome{Failure: catalog.ReasonNoSeller}
	}
	if bundleID == "" {
		return LinkOutcome{Failure: catalog.ReasonMissingData}
	}
	parsed, err := url.Parse(strings.TrimSpace(*sellerURL))
	if err != nil || parsed.Host == "" {
		c.logger.Debug("seller url has no host", zap.String("seller_url", *sellerURL))
		return LinkOutcome{Failure: catalog.ReasonInvalidURL}
	}

	last := catalog.ReasonNoMatch
	for _, path := range AssociationPaths {
		target := (&url.URL{Scheme: c.cfg.AssociationScheme, Host: parsed.Host, Path: path}).String()
		links, reason := c.probe(ctx, target, bundleID)
		metrics.ObserveAssociationProbe(path, outcomeLabel(reason))
		if reason == catalog.ReasonNone {
			c.logger.Debug("universal links resolved",
				zap.String("bundle_id", bundleID), zap.String("url", target), zap.Int("patterns", len(links)))
			return LinkOutcome{Links: links, Path: path}
		}
		last = reason
		if reason == catalog.ReasonCanceled {
			break
		}
	}
	return LinkOutcome{Failure: last}
}

func (c *Client) probe(ctx context.Context, target, bundleID string) ([]string, catalog.FailureReason) {
	if err := c.limiter.Wait(ctx, target); err != nil {
		return nil, catalog.ReasonCanceled
	}
	resp, err := c.fetcher.Fetch(ctx, catalog.FetchRequest{URL: target})
	if err != nil {
		reason := classify(ctx, err)
		c.logger.Debug("association probe failed",
			zap.String("url", target), zap.String("reason", string(reason)), zap.Error(err))
		return nil, reason
	}

	var doc associationDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		c.logger.Debug("association document undecodable", zap.String("url", target), zap.Error(err))
		return nil, catalog.ReasonDecode
	}
	for _, detail := range doc.AppLinks.Details {
		if detail.matches(bundleID) {
			return detail.patterns(), catalog.ReasonNone
		}
	}
	return nil, catalog.ReasonNoMatch
}

func outcomeLabel(reason catalog.FailureReason) string {
	if reason == catalog.ReasonNone {
		return "ok"
	}
	return string(reason)
}
