package monitoring

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muz1lee/preparedness/core/models"
)

func readJournal(t *testing.T, runDir string) []map[string]string {
	t.Helper()

	f, err := os.Open(filepath.Join(runDir, JournalFile))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var lines []map[string]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var record map[string]string
		if err := json.Unmarshal(sc.Bytes(), &record); err != nil {
			t.Fatalf("parse journal line %q: %v", sc.Text(), err)
		}
		lines = append(lines, record)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}
	return lines
}

func TestJournalAppendOrder(t *testing.T) {
	t.Parallel()

	runDir := filepath.Join(t.TempDir(), "pinn", "team-a", "rep1_x")
	journal := NewProgressJournal(nil)
	ctx := context.Background()

	journal.Append(ctx, runDir, "pinn", models.StatusPackingSubmission, map[string]string{"submission": "/s"})
	journal.Append(ctx, runDir, "pinn", models.StatusJudgingStart, map[string]string{"archive": "/a.tar.gz"})
	journal.Append(ctx, runDir, "pinn", models.StatusJudgingDone, map[string]string{"success": "true"})
	journal.Append(ctx, runDir, "pinn", models.StatusCleanup, nil)

	lines := readJournal(t, runDir)
	if len(lines) != 4 {
		t.Fatalf("expected 4 journal lines, got %d", len(lines))
	}

	wantStatus := []string{
		models.StatusPackingSubmission,
		models.StatusJudgingStart,
		models.StatusJudgingDone,
		models.StatusCleanup,
	}
	for i, record := range lines {
		if record["status"] != wantStatus[i] {
			t.Fatalf("line %d: expected status %s, got %s", i, wantStatus[i], record["status"])
		}
		if record["paper_id"] != "pinn" {
			t.Fatalf("line %d: expected paper_id pinn, got %s", i, record["paper_id"])
		}
		if _, err := time.Parse("2006-01-02T15:04:05.000000Z", record["ts"]); err != nil {
			t.Fatalf("line %d: bad timestamp %q: %v", i, record["ts"], err)
		}
	}
	if lines[1]["archive"] != "/a.tar.gz" {
		t.Fatalf("expected archive extra on judging_start, got %v", lines[1])
	}
	if lines[2]["success"] != "true" {
		t.Fatalf("expected success extra on judging_done, got %v", lines[2])
	}
}

func TestJournalCreatesRunDir(t *testing.T) {
	t.Parallel()

	runDir := filepath.Join(t.TempDir(), "not", "yet", "created")
	journal := NewProgressJournal(nil)
	journal.Append(context.Background(), runDir, "rice", models.StatusCleanup, nil)

	if _, err := os.Stat(filepath.Join(runDir, JournalFile)); err != nil {
		t.Fatalf("journal file missing: %v", err)
	}
}

func TestJournalTimestampsMonotonic(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	journal := NewProgressJournal(nil)
	for i := 0; i < 5; i++ {
		journal.Append(context.Background(), runDir, "pinn", models.StatusJudgingStart, nil)
	}

	lines := readJournal(t, runDir)
	for i := 1; i < len(lines); i++ {
		if lines[i]["ts"] < lines[i-1]["ts"] {
			t.Fatalf("timestamps regressed: %s then %s", lines[i-1]["ts"], lines[i]["ts"])
		}
	}
}
