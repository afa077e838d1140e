package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/muz1lee/preparedness/core/models"
	"github.com/muz1lee/preparedness/core/monitoring"

	log "github.com/sirupsen/logrus"
)

// OutputFile is the name of the grader's score payload inside a run
// directory.
const OutputFile = "grader_output.json"

// allocateAttempts bounds the re-stamp loop when two runs of the same
// unit collide on a timestamp.
const allocateAttempts = 10

// Packer turns a submission directory into an archive for the grader.
type Packer interface {
	Pack(dir string) (string, error)
}

// GradingJob runs one grading unit end to end: allocate the run
// directory, pack the submission, invoke the grader, journal every step.
type GradingJob struct {
	packer  Packer
	journal *monitoring.ProgressJournal
	grader  Grader
	outDir  string
	cfg     models.GradeConfig
	now     func() time.Time
}

// NewGradingJob creates a job executor writing run directories under
// outDir.
func NewGradingJob(packer Packer, journal *monitoring.ProgressJournal, grader Grader, outDir string, cfg models.GradeConfig) *GradingJob {
	return &GradingJob{
		packer:  packer,
		journal: journal,
		grader:  grader,
		outDir:  outDir,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run executes one unit. ok reports whether the grader returned a
// non-empty result; err is non-nil only for packing, grader or run-dir
// failures. Once the run directory exists, a cleanup record is journaled
// no matter how the run ends.
func (j *GradingJob) Run(ctx context.Context, unit models.Unit) (ok bool, runDir string, err error) {
	runDir, err = j.allocateRunDir(unit)
	if err != nil {
		return false, "", err
	}
	defer j.journal.Append(ctx, runDir, unit.PaperID, models.StatusCleanup, nil)

	j.journal.Append(ctx, runDir, unit.PaperID, models.StatusPackingSubmission,
		map[string]string{"submission": unit.SubmissionDir})

	archive, err := j.packer.Pack(unit.SubmissionDir)
	if err != nil {
		err = fmt.Errorf("pack submission: %w", err)
		j.failed(ctx, runDir, unit, err)
		return false, runDir, err
	}
	defer os.Remove(archive)

	j.journal.Append(ctx, runDir, unit.PaperID, models.StatusJudgingStart,
		map[string]string{"archive": archive})

	result, err := j.grade(ctx, Request{
		ArchivePath: archive,
		PaperID:     unit.PaperID,
		OutputPath:  filepath.Join(runDir, OutputFile),
		RunDir:      runDir,
		Config:      j.cfg,
	})
	if err != nil {
		j.failed(ctx, runDir, unit, err)
		return false, runDir, err
	}

	ok = result != nil
	log.WithFields(log.Fields{
		"paper_id":   unit.PaperID,
		"submission": unit.Submission,
		"run_dir":    runDir,
		"success":    ok,
	}).Info("graded")
	j.journal.Append(ctx, runDir, unit.PaperID, models.StatusJudgingDone,
		map[string]string{"success": fmt.Sprintf("%t", ok)})
	return ok, runDir, nil
}

// grade calls the grader with the run directory and falls back to the
// legacy contract exactly once when the grader rejects it.
func (j *GradingJob) grade(ctx context.Context, req Request) (*models.GraderOutput, error) {
	out, err := j.grader.Grade(ctx, req)
	if err != nil && req.RunDir != "" && errors.Is(err, ErrRunDirUnsupported) {
		log.WithField("paper_id", req.PaperID).Debug("grader rejected run dir, retrying with legacy contract")
		req.RunDir = ""
		return j.grader.Grade(ctx, req)
	}
	return out, err
}

func (j *GradingJob) failed(ctx context.Context, runDir string, unit models.Unit, err error) {
	log.WithFields(log.Fields{
		"paper_id":   unit.PaperID,
		"submission": unit.Submission,
		"run_dir":    runDir,
	}).WithError(err).Error("judging failed")
	j.journal.Append(ctx, runDir, unit.PaperID, models.StatusJudgingError,
		map[string]string{"error": err.Error()})
}

// allocateRunDir creates <outDir>/<paper>/<submission>/rep<N>_<stamp> and
// guarantees the leaf was created by this call. On a stamp collision it
// retries with a fresh timestamp.
func (j *GradingJob) allocateRunDir(unit models.Unit) (string, error) {
	parent := filepath.Join(j.outDir, unit.PaperID, unit.Submission)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create submission dir: %w", err)
	}

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		stamp := models.UTCMicroDashed(j.now())
		dir := filepath.Join(parent, fmt.Sprintf("rep%d_%s", unit.RepIndex+1, stamp))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create run dir: %w", err)
		}
	}
	return "", fmt.Errorf("run dir collision persisted for %s", unit.Key())
}
