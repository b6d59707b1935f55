// Package report persists what a run produced under the output root's
// state directory: a JSON summary and, per batch, the list of decompiled
// modules plus a unified diff against the previous run's list.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"lwdecomp/internal/model"
	"lwdecomp/internal/runstore"
)

const (
	SummaryFileName = "run.json"
	modulesSuffix   = ".modules"
	diffSuffix      = ".modules.diff"
)

type Summary struct {
	RunID      string               `json:"run_id"`
	GameDir    string               `json:"game_dir"`
	OutputRoot string               `json:"output_root"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Batches    []*model.BatchResult `json:"batches"`
	// Changes maps a batch label to the diff file written for it.
	Changes map[string]string `json:"changes,omitempty"`
}

func SummaryPath(outputRoot string) string {
	return filepath.Join(runstore.StateDir(outputRoot), SummaryFileName)
}

func ModulesPath(outputRoot, label string) string {
	return filepath.Join(runstore.StateDir(outputRoot), label+modulesSuffix)
}

func DiffPath(outputRoot, label string) string {
	return filepath.Join(runstore.StateDir(outputRoot), label+diffSuffix)
}

func WriteSummary(s Summary) error {
	if strings.TrimSpace(s.OutputRoot) == "" {
		return fmt.Errorf("summary output root is required")
	}
	return runstore.WriteJSON(SummaryPath(s.OutputRoot), s)
}

func ReadSummary(outputRoot string) (Summary, error) {
	var s Summary
	if err := runstore.ReadJSON(SummaryPath(outputRoot), &s); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Diff renders a unified diff between two module lists. Identical lists
// yield an empty string.
func Diff(label string, previous, current []string) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(previous),
		B:        withNewlines(current),
		FromFile: filepath.ToSlash(filepath.Join("previous", label)),
		ToFile:   filepath.ToSlash(filepath.Join("current", label)),
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s modules: %w", label, err)
	}
	return text, nil
}

// RecordModules stores the module list of one batch and returns the diff
// path when the list changed since the last recorded run. The first run
// of a label records the list without a diff.
func RecordModules(outputRoot, label string, modules []string) (string, error) {
	listPath := ModulesPath(outputRoot, label)
	diffPath := DiffPath(outputRoot, label)

	_, statErr := os.Stat(listPath)
	firstRun := os.IsNotExist(statErr)
	previous, err := runstore.ReadLines(listPath)
	if err != nil {
		return "", err
	}
	if err := runstore.WriteLines(listPath, modules); err != nil {
		return "", err
	}
	if firstRun {
		return "", nil
	}

	text, err := Diff(label, previous, modules)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		if err := os.Remove(diffPath); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("remove stale diff %s: %w", diffPath, err)
		}
		return "", nil
	}
	if err := runstore.WriteBytes(diffPath, []byte(text)); err != nil {
		return "", err
	}
	return diffPath, nil
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
