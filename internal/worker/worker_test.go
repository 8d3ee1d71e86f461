package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/queue/memory"
)

type fakeEnricher struct {
	mu    sync.Mutex
	calls []string
	panic bool
}

func (f *fakeEnricher) Enrich(_ context.Context, id, bundleID string) catalog.EnrichmentResult {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	seller := "https://seller/" + id
	return catalog.EnrichmentResult{SellerURL: &seller, UniversalLinks: []string{"/" + bundleID}}
}

func runUntilDone(t *testing.T, ctx context.Context, w *Worker) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not return")
	}
}

func TestWorkerProcessesUntilQueueClosed(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), catalog.Task{ID: "1", BundleID: "com.a"}))
	require.NoError(t, q.Enqueue(context.Background(), catalog.Task{ID: "2", BundleID: "com.b"}))
	q.Close()

	enricher := &fakeEnricher{}
	results := make(chan catalog.Completion, 2)
	runUntilDone(t, context.Background(), New(1, q, enricher, results, zap.NewNop()))
	close(results)

	got := map[string]catalog.EnrichmentResult{}
	for c := range results {
		got[c.ID] = c.Result
	}
	require.Len(t, got, 2)
	require.NotNil(t, got["1"].SellerURL)
	assert.Equal(t, "https://seller/1", *got["1"].SellerURL)
	assert.Equal(t, []string{"/com.b"}, got["2"].UniversalLinks)
	assert.Equal(t, []string{"1", "2"}, enricher.calls)
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), catalog.Task{ID: "1"}))
	q.Close()

	results := make(chan catalog.Completion, 1)
	runUntilDone(t, context.Background(), New(1, q, &fakeEnricher{panic: true}, results, nil))

	c := <-results
	assert.Equal(t, "1", c.ID)
	assert.Nil(t, c.Result.SellerURL)
	assert.Empty(t, c.Result.UniversalLinks)
	assert.NotEqual(t, catalog.ReasonNone, c.Result.SellerFailure)
}

func TestWorkerWithoutEnricher(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), catalog.Task{ID: "1"}))
	q.Close()

	results := make(chan catalog.Completion, 1)
	runUntilDone(t, context.Background(), New(1, q, nil, results, nil))
	assert.Equal(t, catalog.ReasonMissingData, (<-results).Result.SellerFailure)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := make(chan catalog.Completion)
	runUntilDone(t, ctx, New(1, memory.NewQueue(1), &fakeEnricher{}, results, nil))
}

// flakyQueue fails once before reporting closure.
type flakyQueue struct {
	calls int
}

func (q *flakyQueue) Enqueue(context.Context, catalog.Task) error { return nil }

func (q *flakyQueue) Dequeue(context.Context) (catalog.Task, error) {
	q.calls++
	if q.calls == 1 {
		return catalog.Task{}, errors.New("transient")
	}
	return catalog.Task{}, catalog.ErrQueueClosed
}

func TestWorkerContinuesAfterDequeueError(t *testing.T) {
	t.Parallel()

	q := &flakyQueue{}
	runUntilDone(t, context.Background(), New(1, q, &fakeEnricher{}, make(chan catalog.Completion), nil))
	assert.Equal(t, 2, q.calls)
}
