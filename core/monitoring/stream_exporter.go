package monitoring

import (
	"context"

	"github.com/muz1lee/preparedness/core/models"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ProgressStream is the default Redis stream journal events are mirrored
// onto.
const ProgressStream = "grading_progress"

// StreamExporter mirrors journal events onto a Redis stream so dashboards
// can follow a batch without reading run directories. Publishing is
// best-effort; failures are logged and never propagate to the job.
type StreamExporter struct {
	rdb     *redis.Client
	stream  string
	batchID string
}

// NewStreamExporter creates an exporter publishing to stream on rdb,
// stamping every entry with batchID.
func NewStreamExporter(rdb *redis.Client, stream, batchID string) *StreamExporter {
	return &StreamExporter{rdb: rdb, stream: stream, batchID: batchID}
}

// Publish mirrors one journal event.
func (se *StreamExporter) Publish(ctx context.Context, runDir string, event models.ProgressEvent) {
	values := map[string]interface{}{
		"batch_id": se.batchID,
		"ts":       event.TS,
		"paper_id": event.PaperID,
		"status":   event.Status,
		"run_dir":  runDir,
	}
	for k, v := range event.Extra {
		values[k] = v
	}

	_, err := se.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: se.stream,
		Values: values,
		ID:     "*",
	}).Result()
	if err != nil {
		log.WithError(err).WithField("stream", se.stream).Debug("progress stream publish failed")
	}
}
