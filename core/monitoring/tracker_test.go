package monitoring

import (
	"testing"

	"github.com/muz1lee/preparedness/core/models"
)

func TestBatchTrackerLifecycle(t *testing.T) {
	t.Parallel()

	units := []models.Unit{
		{PaperID: "pinn", Submission: "team-a", RepIndex: 0},
		{PaperID: "pinn", Submission: "team-b", RepIndex: 0},
		{PaperID: "rice", Submission: "team-a", RepIndex: 0},
	}
	tracker := NewBatchTracker("batch-1")
	tracker.Register(units)

	snap := tracker.Snapshot()
	if snap.Total != 3 || snap.Pending != 3 {
		t.Fatalf("expected 3 pending of 3, got %+v", snap)
	}

	tracker.JobStarted(units[0])
	snap = tracker.Snapshot()
	if snap.Running != 1 || snap.Pending != 2 {
		t.Fatalf("expected 1 running 2 pending, got %+v", snap)
	}

	tracker.JobFinished(units[0], true, "/out/pinn/team-a/rep1_x")
	tracker.JobStarted(units[1])
	tracker.JobFinished(units[1], false, "")
	snap = tracker.Snapshot()
	if snap.Succeeded != 1 || snap.Failed != 1 || snap.Pending != 1 {
		t.Fatalf("expected 1/1/1 succeeded/failed/pending, got %+v", snap)
	}

	runs := tracker.Runs()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].State != RunStateSucceeded || runs[0].RunDir == "" {
		t.Fatalf("expected first run succeeded with run dir, got %+v", runs[0])
	}
	if runs[1].State != RunStateFailed {
		t.Fatalf("expected second run failed, got %+v", runs[1])
	}
	if runs[2].State != RunStatePending {
		t.Fatalf("expected third run pending, got %+v", runs[2])
	}
}

func TestBatchTrackerRunLookup(t *testing.T) {
	t.Parallel()

	unit := models.Unit{PaperID: "pinn", Submission: "team-a", RepIndex: 1}
	tracker := NewBatchTracker("batch-3")
	tracker.Register([]models.Unit{unit})
	tracker.JobStarted(unit)

	run, found := tracker.Run("pinn/team-a/rep2")
	if !found {
		t.Fatalf("expected to find registered unit")
	}
	if run.State != RunStateRunning {
		t.Fatalf("expected running state, got %s", run.State)
	}

	if _, found := tracker.Run("pinn/team-a/rep9"); found {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestBatchTrackerIgnoresUnknownUnit(t *testing.T) {
	t.Parallel()

	tracker := NewBatchTracker("batch-2")
	tracker.Register([]models.Unit{{PaperID: "pinn", Submission: "a", RepIndex: 0}})

	stranger := models.Unit{PaperID: "rice", Submission: "b", RepIndex: 0}
	tracker.JobStarted(stranger)
	tracker.JobFinished(stranger, true, "/x")

	snap := tracker.Snapshot()
	if snap.Total != 1 || snap.Pending != 1 {
		t.Fatalf("expected untouched snapshot, got %+v", snap)
	}
}
