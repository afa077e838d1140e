package monitoring

import (
	"sync"
	"time"

	"github.com/muz1lee/preparedness/core/models"
)

// RunState represents the lifecycle state of one grading unit
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

// RunStatus is the tracked state of a single unit.
type RunStatus struct {
	Unit   models.Unit
	State  RunState
	RunDir string
}

// BatchSnapshot summarizes a batch at one point in time.
type BatchSnapshot struct {
	BatchID   string
	StartedAt time.Time
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
}

// BatchTracker keeps in-memory per-unit state for the batch currently
// running, for the status API. It is not persisted; the journal and the
// run index are the durable records.
type BatchTracker struct {
	batchID   string
	startedAt time.Time

	mu     sync.RWMutex
	states map[string]*RunStatus
	order  []string // registration order for stable listings
}

// NewBatchTracker creates a tracker for one batch.
func NewBatchTracker(batchID string) *BatchTracker {
	return &BatchTracker{
		batchID:   batchID,
		startedAt: time.Now().UTC(),
		states:    make(map[string]*RunStatus),
	}
}

// Register adds units in pending state. Units registered twice keep their
// first entry.
func (bt *BatchTracker) Register(units []models.Unit) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	for _, unit := range units {
		key := unit.Key()
		if _, exists := bt.states[key]; exists {
			continue
		}
		bt.states[key] = &RunStatus{Unit: unit, State: RunStatePending}
		bt.order = append(bt.order, key)
	}
}

// JobStarted marks a unit as running.
func (bt *BatchTracker) JobStarted(unit models.Unit) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if status, exists := bt.states[unit.Key()]; exists {
		status.State = RunStateRunning
	}
}

// JobFinished marks a unit as succeeded or failed and records its run
// directory when one was allocated.
func (bt *BatchTracker) JobFinished(unit models.Unit, ok bool, runDir string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	status, exists := bt.states[unit.Key()]
	if !exists {
		return
	}
	if ok {
		status.State = RunStateSucceeded
	} else {
		status.State = RunStateFailed
	}
	status.RunDir = runDir
}

// Snapshot returns current batch counts.
func (bt *BatchTracker) Snapshot() BatchSnapshot {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	snap := BatchSnapshot{
		BatchID:   bt.batchID,
		StartedAt: bt.startedAt,
		Total:     len(bt.order),
	}
	for _, status := range bt.states {
		switch status.State {
		case RunStatePending:
			snap.Pending++
		case RunStateRunning:
			snap.Running++
		case RunStateSucceeded:
			snap.Succeeded++
		case RunStateFailed:
			snap.Failed++
		}
	}
	return snap
}

// Run looks up one unit by its key ("paper/submission/repN").
func (bt *BatchTracker) Run(key string) (RunStatus, bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	status, exists := bt.states[key]
	if !exists {
		return RunStatus{}, false
	}
	return *status, true
}

// Runs returns a copy of every tracked unit in registration order.
func (bt *BatchTracker) Runs() []RunStatus {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	out := make([]RunStatus, 0, len(bt.order))
	for _, key := range bt.order {
		out = append(out, *bt.states[key])
	}
	return out
}
