// Package aggregator builds per-paper comparison reports from finished
// grading runs.
package aggregator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/muz1lee/preparedness/core/executor"
	"github.com/muz1lee/preparedness/core/models"

	log "github.com/sirupsen/logrus"
)

// dashedStamp matches the dashed wall-clock prefix some graders put in
// time_cost.start_time, e.g. "2025-03-09T14-21-05-123456Z".
var dashedStamp = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T(\d{2})-(\d{2})-(\d{2})`)

// Aggregator reads grader output files out of run directories and writes
// one comparison report per paper.
type Aggregator struct {
	outDir string
	now    func() time.Time
}

// New creates an aggregator over the batch output directory. Run
// directories handed to BuildComparisons must live under it.
func New(outDir string) *Aggregator {
	return &Aggregator{outDir: outDir, now: time.Now}
}

// BuildComparisons aggregates the given run directories per paper and
// writes <outDir>/<paper_id>__comparison__<stamp>.json for each paper
// that produced at least one usable run. Runs that are malformed in any
// way (outside outDir, too shallow, unreadable or unparsable output) are
// skipped; only report write failures return an error. The written paths
// are returned in paper order.
func (a *Aggregator) BuildComparisons(runDirs []string) ([]string, error) {
	perPaper := a.collect(runDirs)

	papers := make([]string, 0, len(perPaper))
	for paperID := range perPaper {
		papers = append(papers, paperID)
	}
	sort.Strings(papers)

	var written []string
	for _, paperID := range papers {
		subMap := perPaper[paperID]
		report := models.ComparisonReport{
			PaperID:     paperID,
			Submissions: make(map[string]models.SubmissionSummary, len(subMap)),
		}
		for submission, runs := range subMap {
			var sum float64
			for _, run := range runs {
				sum += run.Score
			}
			avg := 0.0
			if len(runs) > 0 {
				avg = sum / float64(len(runs))
			}
			report.Submissions[submission] = models.SubmissionSummary{
				Runs:     runs,
				AvgScore: round(avg, 4),
				ScorePct: round(avg*100.0, 2),
			}
		}

		name := fmt.Sprintf("%s__comparison__%s.json", paperID, models.UTCMicroDashed(a.now()))
		path := filepath.Join(a.outDir, name)
		if err := writeJSON(path, report); err != nil {
			return written, fmt.Errorf("write comparison for %s: %w", paperID, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// collect groups run records as paper id -> submission -> runs, keeping
// the order runs were handed in.
func (a *Aggregator) collect(runDirs []string) map[string]map[string][]models.RunSummary {
	perPaper := make(map[string]map[string][]models.RunSummary)
	for _, runDir := range runDirs {
		paperID, submission, rec, ok := a.extract(runDir)
		if !ok {
			continue
		}
		if perPaper[paperID] == nil {
			perPaper[paperID] = make(map[string][]models.RunSummary)
		}
		perPaper[paperID][submission] = append(perPaper[paperID][submission], rec)
	}
	return perPaper
}

// extract reads one run directory into a report row. ok is false when the
// run should be skipped.
func (a *Aggregator) extract(runDir string) (string, string, models.RunSummary, bool) {
	var none models.RunSummary

	rel, err := filepath.Rel(a.outDir, runDir)
	if err != nil {
		return "", "", none, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 || parts[0] == ".." {
		return "", "", none, false
	}

	data, err := os.ReadFile(filepath.Join(runDir, executor.OutputFile))
	if err != nil {
		return "", "", none, false
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.WithField("run_dir", runDir).WithError(err).Debug("skipping unparsable grader output")
		return "", "", none, false
	}

	rec := models.RunSummary{
		RunDir:      rel,
		Timestamp:   timestampFrom(payload),
		Score:       round(scoreFrom(payload["score"]), 3),
		CoveragePct: coverageFrom(payload),
	}
	return parts[0], parts[1], rec, true
}

// scoreFrom coerces the payload's score to a float. Missing or
// non-numeric scores count as 0.0 rather than dropping the run.
func scoreFrom(v interface{}) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return parsed
		}
	}
	return 0.0
}

func coverageFrom(payload map[string]interface{}) *float64 {
	progress, ok := payload["progress"].(map[string]interface{})
	if !ok {
		return nil
	}
	cov, ok := progress["coverage_pct"].(float64)
	if !ok {
		return nil
	}
	return &cov
}

// timestampFrom prefers the judge's time_cost.start_time, normalized to
// ISO with colons, and falls back to graded_at.
func timestampFrom(payload map[string]interface{}) *string {
	if timeCost, ok := payload["time_cost"].(map[string]interface{}); ok {
		if raw, ok := timeCost["start_time"].(string); ok && raw != "" {
			ts := reformatTimestamp(raw)
			return &ts
		}
	}
	if gradedAt, ok := payload["graded_at"].(string); ok {
		return &gradedAt
	}
	return nil
}

// reformatTimestamp converts a dashed wall-clock stamp to ISO form,
// "2025-03-09T14-21-05-123456Z" becoming "2025-03-09T14:21:05Z". Stamps
// in any other shape pass through unchanged.
func reformatTimestamp(ts string) string {
	m := dashedStamp.FindStringSubmatch(ts)
	if m == nil {
		return ts
	}
	return fmt.Sprintf("%sT%s:%s:%sZ", m[1], m[2], m[3], m[4])
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
