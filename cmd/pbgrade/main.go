package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/muz1lee/preparedness/api/rest/routes"
	"github.com/muz1lee/preparedness/config"
	"github.com/muz1lee/preparedness/core/aggregator"
	"github.com/muz1lee/preparedness/core/executor"
	"github.com/muz1lee/preparedness/core/models"
	"github.com/muz1lee/preparedness/core/monitoring"
	"github.com/muz1lee/preparedness/core/registry"
	"github.com/muz1lee/preparedness/core/repository"
	"github.com/muz1lee/preparedness/core/scheduler"
	"github.com/muz1lee/preparedness/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const usage = `local grading for PaperBench submissions

pbgrade walks <submissions-dir>/<paper_id>/<submission>/, packs each
submission into a tar.gz rooted at "submission", grades the archives with a
bounded number of concurrent grader calls, journals every run, and writes
one comparison report per paper`

func main() {
	cfg := config.Load()

	app := cli.NewApp()
	app.Name = "pbgrade"
	app.Usage = usage
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "submissions-dir",
			Usage: "submissions root: <dir>/<paper_id>/<submission_folder> (required)",
		},
		cli.StringFlag{
			Name:  "out-dir",
			Value: cfg.OutDir,
			Usage: "directory run outputs and reports are written to",
		},
		cli.StringFlag{
			Name:  "registry",
			Value: cfg.RegistryPath,
			Usage: "YAML file listing the accepted paper ids",
		},
		cli.StringFlag{
			Name:  "grader-cmd",
			Value: cfg.GraderCmd,
			Usage: "external grader command, e.g. 'python3 grade.py'",
		},
		cli.BoolFlag{
			Name:  "legacy-grader",
			Usage: "grader predates the --run-dir flag; skip offering it",
		},
		cli.StringFlag{
			Name:  "model",
			Value: cfg.Model,
			Usage: "Gemini model name forwarded to the grader",
		},
		cli.BoolFlag{
			Name:  "code-only",
			Usage: "grade code only, without reproduce.sh or its log",
		},
		cli.BoolFlag{
			Name:  "resources-provided",
			Usage: "mark external resources as already provided",
		},
		cli.IntFlag{
			Name:  "max-concurrency",
			Value: 4,
			Usage: "upper bound on concurrent grading jobs",
		},
		cli.Float64Flag{
			Name:  "sleep-between",
			Value: 0,
			Usage: "fixed sleep in seconds before each grader call, for rate limiting",
		},
		cli.IntFlag{
			Name:  "repeat",
			Value: 1,
			Usage: "number of grading repetitions per submission",
		},
		cli.StringFlag{
			Name:  "status-addr",
			Value: cfg.StatusAddr,
			Usage: "serve the read-only status API on this address, e.g. :8080",
		},
		cli.BoolFlag{
			Name:  "no-key-check",
			Usage: "skip the Gemini API key preflight check",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug output for logging",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "set the log file path where internal debug information is written",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the format used by logs ('text' (default), or 'json')",
		},
	}

	app.Before = func(context *cli.Context) error {
		if context.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if path := context.GlobalString("log"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0666)
			if err != nil {
				return err
			}
			logrus.SetOutput(f)
		}
		switch context.GlobalString("log-format") {
		case "text":
			// retain logrus's default.
		case "json":
			logrus.SetFormatter(new(logrus.JSONFormatter))
		default:
			return fmt.Errorf("unknown log-format %q", context.GlobalString("log-format"))
		}
		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		return run(ctx, cfg)
	}

	// If the command returns an error, cli takes upon itself to print
	// the error on cli.ErrWriter and exit.
	// Use our own writer here to ensure the log gets sent to the right location.
	cli.ErrWriter = &FatalWriter{cli.ErrWriter}
	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func run(ctx *cli.Context, cfg *config.Config) error {
	subsRoot := ctx.String("submissions-dir")
	if subsRoot == "" {
		return cli.NewExitError("--submissions-dir is required", 2)
	}
	subsAbs, err := filepath.Abs(subsRoot)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("resolve submissions dir: %v", err), 2)
	}
	if info, err := os.Stat(subsAbs); err != nil || !info.IsDir() {
		return cli.NewExitError(fmt.Sprintf("invalid submissions dir: %s", subsAbs), 2)
	}

	if !ctx.Bool("no-key-check") && !config.HasGraderKey() {
		return cli.NewExitError("missing Gemini API key: set GOOGLE_API_KEY or GEMINI_API_KEY, or add one to .env", 2)
	}

	graderCmd := ctx.String("grader-cmd")
	if graderCmd == "" {
		return cli.NewExitError("no grader command configured: pass --grader-cmd or set GRADER_CMD", 2)
	}
	grader, err := executor.NewCommandGrader(graderCmd, ctx.Bool("legacy-grader"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	reg, err := registry.Load(ctx.String("registry"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load registry: %v", err), 2)
	}

	outAbs, err := filepath.Abs(ctx.String("out-dir"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("resolve out dir: %v", err), 2)
	}

	units, err := scheduler.Enumerate(subsAbs, reg, ctx.Int("repeat"))
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	if len(units) == 0 {
		logrus.WithField("submissions_dir", subsAbs).Warn("no submissions to grade")
		return nil
	}

	batchID := uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"batch_id": batchID,
		"units":    len(units),
		"out_dir":  outAbs,
	}).Info("starting grading batch")

	var exporter *monitoring.StreamExporter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		exporter = monitoring.NewStreamExporter(rdb, monitoring.ProgressStream, batchID)
	}

	journal := monitoring.NewProgressJournal(exporter)
	packer := storage.NewArchivePacker()
	gradeCfg := models.GradeConfig{
		Model:             ctx.String("model"),
		CodeOnly:          ctx.Bool("code-only"),
		ResourcesProvided: ctx.Bool("resources-provided"),
	}
	job := executor.NewGradingJob(packer, journal, grader, outAbs, gradeCfg)

	tracker := monitoring.NewBatchTracker(batchID)
	tracker.Register(units)

	if addr := ctx.String("status-addr"); addr != "" {
		server := statusServer(addr, tracker)
		defer server.Close()
	}

	sleepBetween := time.Duration(ctx.Float64("sleep-between") * float64(time.Second))
	sched := scheduler.NewScheduler(job, ctx.Int("max-concurrency"), sleepBetween, tracker)
	outcomes := sched.Run(context.Background(), units)

	okCount, failCount := 0, 0
	var successDirs []string
	for _, outcome := range outcomes {
		if outcome.OK {
			okCount++
			successDirs = append(successDirs, outcome.RunDir)
		} else {
			failCount++
		}
	}
	logrus.WithFields(logrus.Fields{
		"success": okCount,
		"failed":  failCount,
		"total":   len(outcomes),
	}).Info("grading finished")

	if cfg.PostgresDSN != "" {
		indexOutcomes(cfg.PostgresDSN, batchID, outcomes)
	}

	written, err := aggregator.New(outAbs).BuildComparisons(successDirs)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("build comparisons: %v", err), 1)
	}
	if len(written) > 0 {
		logrus.WithField("files", written).Info("comparison json written")
	}

	if failCount > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d grading jobs failed", failCount, len(outcomes)), 1)
	}
	return nil
}

// statusServer serves the read-only batch API in the background until the
// batch finishes.
func statusServer(addr string, tracker *monitoring.BatchTracker) *http.Server {
	r := mux.NewRouter()
	routes.SetupRoutes(r, tracker)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}
	go func() {
		logrus.WithField("addr", addr).Info("status API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("status server failed")
		}
	}()
	return server
}

// indexOutcomes mirrors the batch's outcomes into the Postgres run index.
// The index is optional; failures are logged, never fatal.
func indexOutcomes(dsn, batchID string, outcomes []models.Outcome) {
	db, err := repository.Connect(dsn)
	if err != nil {
		logrus.WithError(err).Warn("run index unavailable")
		return
	}
	defer db.Close()

	repo := repository.NewRunRepository(db)
	if err := repo.Migrate(); err != nil {
		logrus.WithError(err).Warn("run index migration failed")
		return
	}
	for _, outcome := range outcomes {
		if err := repo.InsertOutcome(batchID, outcome); err != nil {
			logrus.WithError(err).WithField("unit", outcome.Unit.Key()).Warn("run index insert failed")
		}
	}
}

type FatalWriter struct {
	cliErrWriter io.Writer
}

func (f *FatalWriter) Write(p []byte) (n int, err error) {
	logrus.Error(string(p))
	return f.cliErrWriter.Write(p)
}

// fatal prints the error's details
// then exits the program with an exit status of 1.
func fatal(err error) {
	// make sure the error is written to the logger
	logrus.Error(err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
