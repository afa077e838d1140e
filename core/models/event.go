package models

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Journal statuses in the order a healthy run emits them. A run that fails
// inside the grader records StatusJudgingError instead of StatusJudgingDone;
// StatusCleanup is appended last no matter how the run ended.
const (
	StatusPackingSubmission = "packing_submission"
	StatusJudgingStart      = "judging_start"
	StatusJudgingDone       = "judging_done"
	StatusJudgingError      = "judging_error"
	StatusCleanup           = "cleanup"
)

// ProgressEvent represents a single record of a run's progress journal.
// Records are write-once: the journal appends them and never reads back.
type ProgressEvent struct {
	TS      string
	PaperID string
	Status  string
	Extra   map[string]string
}

// MarshalJSON emits the fixed fields first (ts, paper_id, status) and then
// the extra keys in sorted order, so journal lines stay diffable.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	head := struct {
		TS      string `json:"ts"`
		PaperID string `json:"paper_id"`
		Status  string `json:"status"`
	}{e.TS, e.PaperID, e.Status}
	data, err := json.Marshal(head)
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := bytes.NewBuffer(data[:len(data)-1])
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(e.Extra[k])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
