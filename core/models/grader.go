package models

import "encoding/json"

// GraderOutput represents the score payload an external grader returned for
// one run. The output file the grader writes inside the run directory is the
// authoritative record; only the fields the orchestrator reads back are
// surfaced here.
type GraderOutput struct {
	Score float64         `json:"score"`
	Raw   json.RawMessage `json:"-"`
}
