// Package worker implements the enrichment execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/metrics"
)

// Worker consumes enrichment tasks and reports one completion per task.
type Worker struct {
	id       int
	queue    catalog.Queue
	enricher catalog.Enricher
	results  chan<- catalog.Completion
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	queue catalog.Queue,
	enricher catalog.Enricher,
	results chan<- catalog.Completion,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		id:       id,
		queue:    queue,
		enricher: enricher,
		results:  results,
		logger:   logging.OrNop(logger).With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the queue is closed and drained or the
// context finishes.
func (w *Worker) Run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, catalog.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("id", task.ID))

		completion := w.process(ctx, task)
		select {
		case w.results <- completion:
		case <-ctx.Done():
			return
		}
	}
}

// process never fails: a panicking enricher yields an empty result for the task.
func (w *Worker) process(ctx context.Context, task catalog.Task) (completion catalog.Completion) {
	completion.ID = task.ID
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("enrichment panicked", zap.String("id", task.ID), zap.String("panic", fmt.Sprint(r)))
			completion.Result = catalog.EnrichmentResult{
				SellerFailure: catalog.ReasonTransport,
				LinksFailure:  catalog.ReasonMissingData,
			}
		}
	}()

	if w.enricher == nil {
		w.logger.Error("no enricher configured", zap.String("id", task.ID))
		completion.Result = catalog.EnrichmentResult{
			SellerFailure: catalog.ReasonMissingData,
			LinksFailure:  catalog.ReasonMissingData,
		}
		return completion
	}

	completion.Result = w.enricher.Enrich(ctx, task.ID, task.BundleID)
	metrics.ObserveEnrichTask(outcome(completion.Result.SellerFailure), outcome(completion.Result.LinksFailure))
	w.logger.Debug("task enriched",
		zap.String("id", task.ID),
		zap.Bool("seller", completion.Result.SellerURL != nil),
		zap.Int("links", len(completion.Result.UniversalLinks)),
	)
	return completion
}

func outcome(reason catalog.FailureReason) string {
	if reason == catalog.ReasonNone {
		return "ok"
	}
	return string(reason)
}
