package repository

import (
	"fmt"
	"time"

	"github.com/muz1lee/preparedness/core/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var schema = `
CREATE TABLE IF NOT EXISTS grading_runs (
    run_id     VARCHAR(36) PRIMARY KEY,
    batch_id   VARCHAR(36) NOT NULL,
    paper_id   VARCHAR(255) NOT NULL,
    submission VARCHAR(255) NOT NULL,
    rep        INT NOT NULL,
    run_dir    TEXT,
    ok         BOOLEAN NOT NULL,
    error      TEXT,
    created_at TIMESTAMP NOT NULL
);
`

// Connect opens a Postgres connection pool for the run index.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// RunRow mirrors one grading_runs record.
type RunRow struct {
	RunID      string    `db:"run_id"`
	BatchID    string    `db:"batch_id"`
	PaperID    string    `db:"paper_id"`
	Submission string    `db:"submission"`
	Rep        int       `db:"rep"`
	RunDir     string    `db:"run_dir"`
	OK         bool      `db:"ok"`
	Error      string    `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

// RunRepository persists per-run outcomes so grading history survives
// across batches.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Migrate creates the grading_runs table if it does not exist.
func (r *RunRepository) Migrate() error {
	_, err := r.db.Exec(schema)
	return err
}

// InsertOutcome records one terminal outcome under the given batch.
func (r *RunRepository) InsertOutcome(batchID string, outcome models.Outcome) error {
	row := RunRow{
		RunID:      uuid.NewString(),
		BatchID:    batchID,
		PaperID:    outcome.Unit.PaperID,
		Submission: outcome.Unit.Submission,
		Rep:        outcome.Unit.RepIndex + 1,
		RunDir:     outcome.RunDir,
		OK:         outcome.OK,
		CreatedAt:  time.Now().UTC(),
	}
	if outcome.Err != nil {
		row.Error = outcome.Err.Error()
	}

	query := `INSERT INTO grading_runs
        (run_id, batch_id, paper_id, submission, rep, run_dir, ok, error, created_at)
        VALUES
        (:run_id, :batch_id, :paper_id, :submission, :rep, :run_dir, :ok, :error, :created_at)
        ON CONFLICT (run_id) DO NOTHING`
	_, err := r.db.NamedExec(query, row)
	return err
}

// RecentRuns lists runs with an optional batch filter, newest first.
func (r *RunRepository) RecentRuns(batchID string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT run_id, batch_id, paper_id, submission, rep, run_dir, ok, error, created_at
        FROM grading_runs`
	args := []interface{}{}
	if batchID != "" {
		query += ` WHERE batch_id = $1`
		args = append(args, batchID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var rows []RunRow
	if err := r.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
