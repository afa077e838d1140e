package executor

import (
	"context"
	"errors"

	"github.com/muz1lee/preparedness/core/models"
)

// ErrRunDirUnsupported signals a grader built against the older contract
// that has no run-directory parameter. The job retries once without one.
var ErrRunDirUnsupported = errors.New("grader does not accept a run directory")

// Request carries everything the external grader needs for one run.
type Request struct {
	ArchivePath string
	PaperID     string
	OutputPath  string
	RunDir      string // empty on the legacy fallback call
	Config      models.GradeConfig
}

// Grader scores one packed submission archive against a paper. A nil
// output with a nil error means the grader finished without producing a
// result; the run is then recorded as unsuccessful without being an error.
type Grader interface {
	Grade(ctx context.Context, req Request) (*models.GraderOutput, error)
}
