package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/muz1lee/preparedness/core/models"

	log "github.com/sirupsen/logrus"
)

// JournalFile is the name of the per-run progress journal.
const JournalFile = "progress.jsonl"

// ProgressJournal appends one-line JSON records to a run's progress
// journal. The journal is a side channel: append failures are logged and
// swallowed so observability can never fail a grading job.
type ProgressJournal struct {
	exporter *StreamExporter // optional mirror, may be nil
	now      func() time.Time
}

// NewProgressJournal creates a journal. exporter may be nil when no stream
// mirroring is configured.
func NewProgressJournal(exporter *StreamExporter) *ProgressJournal {
	return &ProgressJournal{exporter: exporter, now: time.Now}
}

// Append records one event for the run at runDir. The run directory and
// journal file are created on first use. Records carry a UTC timestamp
// taken at call time, so lines within one journal are in emission order.
func (pj *ProgressJournal) Append(ctx context.Context, runDir, paperID, status string, extra map[string]string) {
	event := models.ProgressEvent{
		TS:      models.UTCMicro(pj.now()),
		PaperID: paperID,
		Status:  status,
		Extra:   extra,
	}
	if err := appendLine(filepath.Join(runDir, JournalFile), event); err != nil {
		log.WithError(err).WithField("run_dir", runDir).Debug("progress journal append failed")
	}
	if pj.exporter != nil {
		pj.exporter.Publish(ctx, runDir, event)
	}
}

func appendLine(path string, event models.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
