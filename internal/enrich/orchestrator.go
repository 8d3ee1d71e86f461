// Package enrich attaches seller URLs and universal links to every record of
// a directory of catalog files, looking each unique id up exactly once.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/clock/system"
	"github.com/JakeFAU/appcatalog/internal/dispatcher"
	"github.com/JakeFAU/appcatalog/internal/id/uuid"
	"github.com/JakeFAU/appcatalog/internal/logging"
	"github.com/JakeFAU/appcatalog/internal/queue/memory"
	"github.com/JakeFAU/appcatalog/internal/storage/local"
	"github.com/JakeFAU/appcatalog/internal/worker"
)

// DefaultWorkers is the pool size used when Config.Workers is not positive.
const DefaultWorkers = 5

// CatalogStore reads and writes catalog files.
type CatalogStore interface {
	List(ctx context.Context, dir string) ([]string, error)
	Load(ctx context.Context, name string) ([]catalog.Record, error)
	Save(ctx context.Context, name string, records any) (local.Written, error)
}

// Exporter receives every enriched file after it is written.
type Exporter interface {
	Export(ctx context.Context, runID, source string, records []catalog.EnrichedRecord) (int, error)
}

// Config controls the worker pool.
type Config struct {
	Workers    int
	QueueDepth int
}

// Summary reports what one run did.
type Summary struct {
	RunID          string
	FilesRead      int
	FilesSkipped   int
	FilesWritten   int
	// FilesUnchanged counts written files whose content matched the previous output.
	FilesUnchanged int
	UniqueIDs      int
	LookedUp       int
	SellerHits     int
	LinkHits       int
	Divergent      int
	Outputs        []string
}

// Orchestrator runs the enrichment phase.
type Orchestrator struct {
	store    CatalogStore
	enricher catalog.Enricher
	exporter Exporter
	progress *Progress
	ids      catalog.IDGenerator
	clock    catalog.Clock
	cfg      Config
	logger   *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithExporter exports every written file.
func WithExporter(e Exporter) Option {
	return func(o *Orchestrator) { o.exporter = e }
}

// WithProgress publishes run counters to p.
func WithProgress(p *Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithIDGenerator sets the run id source.
func WithIDGenerator(ids catalog.IDGenerator) Option {
	return func(o *Orchestrator) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithClock sets the clock used for progress timestamps.
func WithClock(c catalog.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// New constructs an Orchestrator.
func New(store CatalogStore, enricher catalog.Enricher, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers * 2
	}
	o := &Orchestrator{
		store:    store,
		enricher: enricher,
		cfg:      cfg,
		clock:    system.New(),
		ids:      uuid.New(),
		logger:   logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type loadedFile struct {
	name    string
	records int
}

// Run enriches every catalog file directly inside dir. A positive limit caps
// the number of ids looked up; the remaining records get the negative marker.
// Nothing is written when ctx ends before every lookup completed.
func (o *Orchestrator) Run(ctx context.Context, dir string, limit int) (Summary, error) {
	runID, err := o.newRunID()
	if err != nil {
		return Summary{}, err
	}
	logger := o.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}
	o.progress.start(runID, o.clock.Now())

	names, err := o.store.List(ctx, dir)
	if err != nil {
		o.progress.setState(StateAborted)
		return summary, fmt.Errorf("list catalog files: %w", err)
	}
	logger.Info("starting enrichment", zap.String("dir", dir), zap.Int("files", len(names)), zap.Int("limit", limit))

	files, unique, order, divergent := o.loadAll(ctx, names, logger)
	summary.FilesRead = len(files)
	summary.FilesSkipped = len(names) - len(files)
	summary.UniqueIDs = len(order)
	summary.Divergent = divergent

	tasks := buildTasks(unique, order, limit)
	summary.LookedUp = len(tasks)
	o.progress.loaded(len(files), len(order), len(tasks))
	o.progress.setState(StateEnriching)
	logger.Info("unique records collected",
		zap.Int("unique_ids", len(order)), zap.Int("tasks", len(tasks)), zap.Int("workers", o.cfg.Workers))

	results := o.enrichAll(ctx, tasks, logger)
	if err := ctx.Err(); err != nil {
		o.progress.setState(StateAborted)
		logger.Warn("enrichment aborted before completion", zap.Int("completed", len(results)), zap.Int("tasks", len(tasks)))
		return summary, fmt.Errorf("enrichment aborted: %w", err)
	}
	for _, res := range results {
		if res.SellerURL != nil {
			summary.SellerHits++
		}
		if len(res.UniversalLinks) > 0 {
			summary.LinkHits++
		}
	}

	o.progress.setState(StateWriting)
	for _, file := range files {
		out, unchanged, err := o.writeEnriched(ctx, runID, file, results, logger)
		if err != nil {
			if ctx.Err() != nil {
				o.progress.setState(StateAborted)
				return summary, fmt.Errorf("enrichment aborted: %w", ctx.Err())
			}
			summary.FilesSkipped++
			logger.Warn("skipping enriched output", zap.String("file", file.name), zap.Error(err))
			continue
		}
		summary.FilesWritten++
		if unchanged {
			summary.FilesUnchanged++
		}
		summary.Outputs = append(summary.Outputs, out)
		o.progress.fileWritten()
	}

	o.progress.setState(StateDone)
	logger.Info("enrichment finished",
		zap.Int("files_read", summary.FilesRead),
		zap.Int("files_skipped", summary.FilesSkipped),
		zap.Int("files_written", summary.FilesWritten),
		zap.Int("files_unchanged", summary.FilesUnchanged),
		zap.Int("unique_ids", summary.UniqueIDs),
		zap.Int("looked_up", summary.LookedUp),
		zap.Int("seller_hits", summary.SellerHits),
		zap.Int("link_hits", summary.LinkHits),
	)
	return summary, nil
}

// loadAll reads every file and merges records by id. The last file wins and
// order keeps the first appearance of each id.
func (o *Orchestrator) loadAll(
	ctx context.Context,
	names []string,
	logger *zap.Logger,
) ([]loadedFile, map[string]catalog.Record, []string, int) {
	files := make([]loadedFile, 0, len(names))
	unique := make(map[string]catalog.Record)
	var order []string
	divergent := 0

	for _, name := range names {
		records, err := o.store.Load(ctx, name)
		if err != nil {
			if errors.Is(err, local.ErrUnreadableCatalog) {
				logger.Warn("skipping unreadable catalog file", zap.String("file", name), zap.Error(err))
			} else {
				logger.Error("load catalog file failed", zap.String("file", name), zap.Error(err))
			}
			continue
		}
		files = append(files, loadedFile{name: name, records: len(records)})
		for _, rec := range records {
			if rec.ID == "" {
				continue
			}
			prev, seen := unique[rec.ID]
			if !seen {
				order = append(order, rec.ID)
			} else if prev != rec {
				divergent++
				logger.Warn("divergent copies of record",
					zap.String("id", rec.ID), zap.String("file", name),
					zap.String("bundle_id", rec.BundleID), zap.String("previous_bundle_id", prev.BundleID))
			}
			unique[rec.ID] = rec
		}
	}
	return files, unique, order, divergent
}

func buildTasks(unique map[string]catalog.Record, order []string, limit int) []catalog.Task {
	tasks := make([]catalog.Task, 0, len(order))
	for _, id := range order {
		rec := unique[id]
		if rec.BundleID == "" {
			continue
		}
		tasks = append(tasks, catalog.Task{ID: id, BundleID: rec.BundleID})
		if limit > 0 && len(tasks) == limit {
			break
		}
	}
	return tasks
}

// enrichAll fans tasks out to the worker pool. The returned map is complete
// only when ctx did not end; it is built by this goroutine alone after the
// completion channel closes.
func (o *Orchestrator) enrichAll(ctx context.Context, tasks []catalog.Task, logger *zap.Logger) map[string]catalog.EnrichmentResult {
	out := make(map[string]catalog.EnrichmentResult, len(tasks))
	if len(tasks) == 0 {
		return out
	}

	workerCount := min(o.cfg.Workers, len(tasks))
	queue := memory.NewQueue(o.cfg.QueueDepth)
	completions := make(chan catalog.Completion, workerCount)
	workers := make([]*worker.Worker, 0, workerCount)
	workerLogger := logger.Named("worker")
	for i := range workerCount {
		workers = append(workers, worker.New(i+1, queue, o.enricher, completions, workerLogger))
	}
	pool := dispatcher.New(queue, workers)

	go func() {
		pool.Run(ctx)
		close(completions)
	}()
	go func() {
		defer queue.Close()
		for _, task := range tasks {
			if err := pool.Enqueue(ctx, task); err != nil {
				logger.Debug("stopped enqueuing", zap.Error(err))
				return
			}
		}
	}()

	for c := range completions {
		out[c.ID] = c.Result
		o.progress.taskDone(c.Result)
	}
	return out
}

func (o *Orchestrator) writeEnriched(
	ctx context.Context,
	runID string,
	file loadedFile,
	results map[string]catalog.EnrichmentResult,
	logger *zap.Logger,
) (string, bool, error) {
	records, err := o.store.Load(ctx, file.name)
	if err != nil {
		return "", false, fmt.Errorf("reload %s: %w", file.name, err)
	}
	enriched := make([]catalog.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		if res, ok := results[rec.ID]; ok && rec.ID != "" {
			enriched = append(enriched, rec.Enriched(&res))
			continue
		}
		enriched = append(enriched, rec.Enriched(nil))
	}

	outName := local.EnrichedName(file.name)
	written, err := o.store.Save(ctx, outName, enriched)
	if err != nil {
		return "", false, fmt.Errorf("save %s: %w", outName, err)
	}
	logger.Info("enriched catalog written",
		zap.String("file", outName), zap.Int("records", written.Records), zap.String("sha256", written.Digest))

	if o.exporter != nil {
		if n, err := o.exporter.Export(ctx, runID, outName, enriched); err != nil {
			logger.Warn("export failed", zap.String("file", outName), zap.Int("exported", n), zap.Error(err))
		}
	}
	return outName, written.Unchanged, nil
}

func (o *Orchestrator) newRunID() (string, error) {
	id, err := o.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}
