package enrich

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/appcatalog/internal/catalog"
)

// Run states reported by Progress.
const (
	StateIdle      = "idle"
	StateLoading   = "loading"
	StateEnriching = "enriching"
	StateWriting   = "writing"
	StateDone      = "done"
	StateAborted   = "aborted"
)

// Progress tracks the counters of the current enrichment run. It is safe for
// concurrent use; the status server reads it while the run updates it.
type Progress struct {
	mu        sync.RWMutex
	runID     string
	state     string
	startedAt time.Time

	filesTotal   atomic.Int64
	filesWritten atomic.Int64
	uniqueIDs    atomic.Int64
	tasksTotal   atomic.Int64
	tasksDone    atomic.Int64
	sellerHits   atomic.Int64
	linkHits     atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	FilesTotal   int64     `json:"files_total"`
	FilesWritten int64     `json:"files_written"`
	UniqueIDs    int64     `json:"unique_ids"`
	TasksTotal   int64     `json:"tasks_total"`
	TasksDone    int64     `json:"tasks_done"`
	SellerHits   int64     `json:"seller_hits"`
	LinkHits     int64     `json:"link_hits"`
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{state: StateIdle}
}

func (p *Progress) start(runID string, at time.Time) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.runID = runID
	p.state = StateLoading
	p.startedAt = at
	p.mu.Unlock()
	for _, c := range []*atomic.Int64{
		&p.filesTotal, &p.filesWritten, &p.uniqueIDs, &p.tasksTotal, &p.tasksDone, &p.sellerHits, &p.linkHits,
	} {
		c.Store(0)
	}
}

func (p *Progress) setState(state string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Progress) loaded(files, unique, tasks int) {
	if p == nil {
		return
	}
	p.filesTotal.Store(int64(files))
	p.uniqueIDs.Store(int64(unique))
	p.tasksTotal.Store(int64(tasks))
}

func (p *Progress) taskDone(res catalog.EnrichmentResult) {
	if p == nil {
		return
	}
	p.tasksDone.Add(1)
	if res.SellerURL != nil {
		p.sellerHits.Add(1)
	}
	if len(res.UniversalLinks) > 0 {
		p.linkHits.Add(1)
	}
}

func (p *Progress) fileWritten() {
	if p == nil {
		return
	}
	p.filesWritten.Add(1)
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{State: StateIdle}
	}
	p.mu.RLock()
	snap := ProgressSnapshot{RunID: p.runID, State: p.state, StartedAt: p.startedAt}
	p.mu.RUnlock()
	snap.FilesTotal = p.filesTotal.Load()
	snap.FilesWritten = p.filesWritten.Load()
	snap.UniqueIDs = p.uniqueIDs.Load()
	snap.TasksTotal = p.tasksTotal.Load()
	snap.TasksDone = p.tasksDone.Load()
	snap.SellerHits = p.sellerHits.Load()
	snap.LinkHits = p.linkHits.Load()
	return snap
}
