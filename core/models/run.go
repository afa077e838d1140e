package models

import "fmt"

// Unit represents one schedulable grading task: a single submission
// directory graded against a paper, for one repetition.
type Unit struct {
	PaperID       string
	Submission    string // base name of the submission directory
	SubmissionDir string // absolute path to the submission directory
	RepIndex      int    // 0-based; run directories use rep<N> with N = RepIndex+1
}

// Key returns a stable identifier for the unit, e.g. "pinn/team-a/rep2".
func (u Unit) Key() string {
	return fmt.Sprintf("%s/%s/rep%d", u.PaperID, u.Submission, u.RepIndex+1)
}

// Outcome represents the terminal result of one grading unit.
type Outcome struct {
	Unit   Unit
	OK     bool   // grader returned a non-empty result
	RunDir string // empty if the run directory could not be allocated
	Err    error  // non-nil only when the job failed with an error
}

// GradeConfig carries the grading options forwarded to the external grader.
type GradeConfig struct {
	Model             string
	CodeOnly          bool
	ResourcesProvided bool
}
