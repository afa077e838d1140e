package scheduler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/muz1lee/preparedness/core/models"

	log "github.com/sirupsen/logrus"
)

// PaperLookup answers whether a paper id is known to the grading
// registry.
type PaperLookup interface {
	Contains(id string) bool
}

// Enumerate walks <root>/<paper_id>/<submission>/ and expands every
// submission into repeat units. Directories whose name is not a
// registered paper id are skipped with a warning. Non-directory entries
// are ignored at both levels. repeat values below 1 mean one repetition.
func Enumerate(root string, papers PaperLookup, repeat int) ([]models.Unit, error) {
	if repeat < 1 {
		repeat = 1
	}

	paperEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read submissions dir: %w", err)
	}

	var units []models.Unit
	for _, paperEntry := range paperEntries {
		if !paperEntry.IsDir() {
			continue
		}
		paperID := paperEntry.Name()
		paperDir := filepath.Join(root, paperID)
		if !papers.Contains(paperID) {
			log.WithFields(log.Fields{
				"paper_id": paperID,
				"path":     paperDir,
			}).Warn("skipping unknown paper id")
			continue
		}

		subEntries, err := os.ReadDir(paperDir)
		if err != nil {
			return nil, fmt.Errorf("read paper dir %s: %w", paperDir, err)
		}
		for _, subEntry := range subEntries {
			if !subEntry.IsDir() {
				continue
			}
			for rep := 0; rep < repeat; rep++ {
				units = append(units, models.Unit{
					PaperID:       paperID,
					Submission:    subEntry.Name(),
					SubmissionDir: filepath.Join(paperDir, subEntry.Name()),
					RepIndex:      rep,
				})
			}
		}
	}
	return units, nil
}
