// Package catalog defines core types shared across the collection and enrichment phases.
package catalog

import (
	"net/http"
	"time"
)

// Ranking selects a top-chart within a category.
type Ranking string

// Ranking values understood by the feed API.
const (
	RankingTopFree     Ranking = "topfreeapplications"
	RankingTopPaid     Ranking = "toppaidapplications"
	RankingTopGrossing Ranking = "topgrossingapplications"
)

// Record is one application entry as collected from a ranked feed.
// Field order is the serialized order.
type Record struct {
	ID       string `json:"id"`
	BundleID string `json:"bundle_id"`
	Name     string `json:"name"`
	IconURL  string `json:"icon_url"`
}

// Complete reports whether every field required for collection is present.
func (r Record) Complete() bool {
	return r.ID != "" && r.BundleID != "" && r.Name != "" && r.IconURL != ""
}

// EnrichedRecord is a Record with secondary data attached. SellerURL is always
// serialized (null when unknown) and UniversalLinks is always an array.
type EnrichedRecord struct {
	ID             string   `json:"id"`
	BundleID       string   `json:"bundle_id"`
	Name           string   `json:"name"`
	IconURL        string   `json:"icon_url"`
	SellerURL      *string  `json:"seller_url"`
	UniversalLinks []string `json:"universal_links"`
}

// Enriched attaches res to r. A nil res produces the negative marker.
func (r Record) Enriched(res *EnrichmentResult) EnrichedRecord {
	out := EnrichedRecord{
		ID:             r.ID,
		BundleID:       r.BundleID,
		Name:           r.Name,
		IconURL:        r.IconURL,
		UniversalLinks: []string{},
	}
	if res == nil {
		return out
	}
	if res.SellerURL != nil {
		seller := *res.SellerURL
		out.SellerURL = &seller
	}
	if len(res.UniversalLinks) > 0 {
		out.UniversalLinks = append(out.UniversalLinks, res.UniversalLinks...)
	}
	return out
}

// FailureReason classifies why a lookup step produced no value.
type FailureReason string

// Failure reasons recorded on lookup outcomes. ReasonNone means the step
// produced a value.
const (
	ReasonNone        FailureReason = ""
	ReasonTransport   FailureReason = "transport"
	ReasonStatus      FailureReason = "status"
	ReasonDecode      FailureReason = "decode"
	ReasonNotFound    FailureReason = "not_found"
	ReasonNoSeller    FailureReason = "no_seller"
	ReasonInvalidURL  FailureReason = "invalid_url"
	ReasonNoMatch     FailureReason = "no_match"
	ReasonCanceled    FailureReason = "canceled"
	ReasonMissingData FailureReason = "missing_data"
)

// EnrichmentResult is the secondary data resolved for one application id.
type EnrichmentResult struct {
	SellerURL      *string
	UniversalLinks []string
	SellerFailure  FailureReason
	LinksFailure   FailureReason
	// AssociationPath is the well-known path that produced UniversalLinks.
	AssociationPath string
}

// Task is one unit of enrichment work.
type Task struct {
	ID       string
	BundleID string
}

// Completion pairs a task id with its result.
type Completion struct {
	ID     string
	Result EnrichmentResult
}

// FeedQuery identifies one ranked-feed page.
type FeedQuery struct {
	Country string
	Genre   int
	Ranking Ranking
	Limit   int
}

// FetchRequest captures everything needed to issue one GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
