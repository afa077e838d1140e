package models

// RunSummary represents one run's row in a comparison report.
type RunSummary struct {
	RunDir      string   `json:"run_dir"`
	Timestamp   *string  `json:"timestamp"`
	Score       float64  `json:"score"`
	CoveragePct *float64 `json:"coverage_pct"`
}

// SubmissionSummary aggregates every run of one submission under a paper.
type SubmissionSummary struct {
	Runs     []RunSummary `json:"runs"`
	AvgScore float64      `json:"avg_score"`
	ScorePct float64      `json:"score_pct"`
}

// ComparisonReport is the per-paper document written after a batch. The
// submissions map marshals with sorted keys, so reports are deterministic
// for a given set of runs.
type ComparisonReport struct {
	PaperID     string                       `json:"paper_id"`
	Submissions map[string]SubmissionSummary `json:"submissions"`
}
