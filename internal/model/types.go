package model

import (
	"sort"
	"sync"
	"time"
)

// DecompJob is one module scheduled for decompilation within a batch.
type DecompJob struct {
	Index        int    `json:"index"`
	Module       string `json:"module"`
	SourcePath   string `json:"source_path"`
	OutputDir    string `json:"output_dir"`
	ManifestPath string `json:"manifest_path"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// JobOutcome is the result of a single engine call. A failed outcome
// carries the engine's message; it never aborts the batch.
type JobOutcome struct {
	Index        int           `json:"index"`
	Module       string        `json:"module"`
	OutputDir    string        `json:"output_dir"`
	ManifestPath string        `json:"manifest_path"`
	Status       string        `json:"status"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	Message      string        `json:"message,omitempty"`
}

func (o JobOutcome) Succeeded() bool {
	return o.Status == StatusCompleted
}

func Success(job DecompJob, elapsed time.Duration) JobOutcome {
	return JobOutcome{
		Index:        job.Index,
		Module:       job.Module,
		OutputDir:    job.OutputDir,
		ManifestPath: job.ManifestPath,
		Status:       StatusCompleted,
		Elapsed:      elapsed,
	}
}

func Failure(job DecompJob, elapsed time.Duration, message string) JobOutcome {
	return JobOutcome{
		Index:        job.Index,
		Module:       job.Module,
		OutputDir:    job.OutputDir,
		ManifestPath: job.ManifestPath,
		Status:       StatusFailed,
		Elapsed:      elapsed,
		Message:      message,
	}
}

// BatchResult aggregates the outcomes of one batch. Add is safe for
// concurrent use by pool workers.
type BatchResult struct {
	Label     string        `json:"label"`
	SourceDir string        `json:"source_dir"`
	OutputDir string        `json:"output_dir"`
	Outcomes  []JobOutcome  `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	mu sync.Mutex
}

func NewBatchResult(label, sourceDir, outputDir string) *BatchResult {
	return &BatchResult{
		Label:     label,
		SourceDir: sourceDir,
		OutputDir: outputDir,
		Outcomes:  []JobOutcome{},
	}
}

func (r *BatchResult) Add(o JobOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, o)
	if o.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Total is the number of jobs attempted.
func (r *BatchResult) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Outcomes)
}

// Sort orders outcomes by job index so parallel runs report like
// sequential ones.
func (r *BatchResult) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Index < r.Outcomes[j].Index
	})
}

func (r *BatchResult) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Module)
	}
	sort.Strings(out)
	return out
}
