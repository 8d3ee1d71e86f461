package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Fetcher issues a single GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Enricher resolves secondary data for a single application.
type Enricher interface {
	Enrich(ctx context.Context, id, bundleID string) EnrichmentResult
}

// FeedFetcher returns the new records of one feed page, marking them in seen.
type FeedFetcher interface {
	Fetch(ctx context.Context, query FeedQuery, seen *IDSet) []Record
}

// Queue provides enqueue/dequeue semantics for enrichment tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}

// Pauser blocks for a delay or until the context finishes.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}
