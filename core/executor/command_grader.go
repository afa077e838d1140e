package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/muz1lee/preparedness/core/models"

	log "github.com/sirupsen/logrus"
)

// CommandGrader invokes an external grader binary once per run. The
// grader receives the archive, paper id and output path as flags and is
// expected to write its score payload to the output path.
type CommandGrader struct {
	bin      string
	baseArgs []string
	legacy   bool // grader predates the --run-dir flag
}

// NewCommandGrader parses command into a binary plus leading arguments.
// The command is split on whitespace; quoting is not interpreted. With
// legacy set, requests are refused until retried without a run directory.
func NewCommandGrader(command string, legacy bool) (*CommandGrader, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("grader command is empty")
	}
	return &CommandGrader{bin: fields[0], baseArgs: fields[1:], legacy: legacy}, nil
}

// Grade runs the grader subprocess and reads back its output file. A
// missing output file after a clean exit yields (nil, nil).
func (g *CommandGrader) Grade(ctx context.Context, req Request) (*models.GraderOutput, error) {
	if g.legacy && req.RunDir != "" {
		return nil, ErrRunDirUnsupported
	}

	cmd := exec.CommandContext(ctx, g.bin, g.args(req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{
		"paper_id": req.PaperID,
		"bin":      g.bin,
	}).Debug("invoking grader")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if req.RunDir != "" && rejectsRunDir(msg) {
			return nil, fmt.Errorf("%w: %s", ErrRunDirUnsupported, msg)
		}
		if msg != "" {
			return nil, fmt.Errorf("grader failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("grader failed: %w", err)
	}

	data, err := os.ReadFile(req.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read grader output: %w", err)
	}

	out := &models.GraderOutput{Raw: data}
	var head struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &head); err == nil {
		out.Score = head.Score
	}
	return out, nil
}

func (g *CommandGrader) args(req Request) []string {
	args := append([]string{}, g.baseArgs...)
	args = append(args,
		"--submission", req.ArchivePath,
		"--paper-id", req.PaperID,
		"--out", req.OutputPath,
	)
	if req.Config.Model != "" {
		args = append(args, "--model", req.Config.Model)
	}
	if req.Config.CodeOnly {
		args = append(args, "--code-only")
	}
	if req.Config.ResourcesProvided {
		args = append(args, "--resources-provided")
	}
	if req.RunDir != "" {
		args = append(args, "--run-dir", req.RunDir)
	}
	return args
}

// rejectsRunDir sniffs stderr for the flag-parse failures old graders
// print when handed --run-dir.
func rejectsRunDir(stderr string) bool {
	lower := strings.ToLower(stderr)
	if !strings.Contains(lower, "run-dir") {
		return false
	}
	for _, marker := range []string{"unknown", "unrecognized", "unexpected", "invalid", "no such"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
