package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muz1lee/preparedness/core/models"
	"github.com/muz1lee/preparedness/core/monitoring"
)

// JobRunner executes one grading unit and reports whether the grader
// produced a result, the run directory, and any terminal error.
type JobRunner interface {
	Run(ctx context.Context, unit models.Unit) (bool, string, error)
}

// Scheduler fans grading units out to a bounded set of workers. At most
// maxConcurrency units are in flight at once; every unit runs to a
// terminal outcome before Run returns.
type Scheduler struct {
	runner         JobRunner
	maxConcurrency int
	sleepBetween   time.Duration
	tracker        *monitoring.BatchTracker // optional
}

// NewScheduler creates a scheduler. maxConcurrency values below 1 are
// treated as 1. sleepBetween throttles grader calls: each worker sleeps
// that long after claiming a slot, so at most maxConcurrency calls start
// per sleep interval. tracker may be nil.
func NewScheduler(runner JobRunner, maxConcurrency int, sleepBetween time.Duration, tracker *monitoring.BatchTracker) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		runner:         runner,
		maxConcurrency: maxConcurrency,
		sleepBetween:   sleepBetween,
		tracker:        tracker,
	}
}

// Run grades every unit and returns outcomes in unit order. A failing or
// panicking unit never stops the others; its outcome carries the error.
func (s *Scheduler) Run(ctx context.Context, units []models.Unit) []models.Outcome {
	outcomes := make([]models.Outcome, len(units))
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit models.Unit) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = models.Outcome{Unit: unit, Err: fmt.Errorf("job panic: %v", r)}
					if s.tracker != nil {
						s.tracker.JobFinished(unit, false, "")
					}
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			if s.sleepBetween > 0 {
				time.Sleep(s.sleepBetween)
			}
			if s.tracker != nil {
				s.tracker.JobStarted(unit)
			}

			ok, runDir, err := s.runner.Run(ctx, unit)
			outcomes[i] = models.Outcome{Unit: unit, OK: ok, RunDir: runDir, Err: err}
			if s.tracker != nil {
				s.tracker.JobFinished(unit, ok, runDir)
			}
		}(i, unit)
	}
	wg.Wait()

	return outcomes
}
