// Package driver sequences a full run: the server batch, then the client
// batch, then the run summary.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lwdecomp/internal/audit"
	"lwdecomp/internal/batch"
	"lwdecomp/internal/decompiler"
	"lwdecomp/internal/filter"
	"lwdecomp/internal/install"
	"lwdecomp/internal/model"
	"lwdecomp/internal/report"
	"lwdecomp/internal/runstore"
)

// ErrJobFailures is returned when FailOnJobError is set and at least one
// module failed.
var ErrJobFailures = errors.New("one or more modules failed to decompile")

const auditActor = "lwdecomp"

type Options struct {
	Roots
	Layout install.Layout
	// ServerLabel and ClientLabel name the batch folders under the
	// output root.
	ServerLabel       string
	ClientLabel       string
	Filter            filter.Filter
	ManifestExtension string
	Engine            decompiler.Engine
	Workers           int
	Out               io.Writer
	Color             bool
	Logger            *zap.Logger
	Audit             *audit.Logger
	FailOnJobError    bool
	// Only restricts the run to the named batch labels. Empty runs both.
	Only []string
}

type Result struct {
	RunID     string               `json:"run_id"`
	Batches   []*model.BatchResult `json:"batches"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	// Changes maps a batch label to its module-list diff file.
	Changes map[string]string `json:"changes,omitempty"`
	Elapsed time.Duration     `json:"elapsed_ns"`
}

type plan struct {
	label  string
	source string
	output string
}

// plans lists the batches of a run in execution order.
func plans(opts Options) []plan {
	all := []plan{
		{label: opts.ServerLabel, source: opts.Layout.ServerPath(opts.GameDir), output: filepath.Join(opts.OutputRoot, opts.ServerLabel)},
		{label: opts.ClientLabel, source: opts.Layout.ClientPath(opts.GameDir), output: filepath.Join(opts.OutputRoot, opts.ClientLabel)},
	}
	if len(opts.Only) == 0 {
		return all
	}
	out := make([]plan, 0, len(all))
	for _, p := range all {
		if slices.Contains(opts.Only, p.label) {
			out = append(out, p)
		}
	}
	return out
}

// Run executes the batches one after another. A fatal batch error stops
// the run; module failures only do so through ErrJobFailures.
func Run(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	for _, label := range []string{opts.ServerLabel, opts.ClientLabel} {
		if err := runstore.CheckFolderName(label); err != nil {
			return Result{}, fmt.Errorf("output folder: %w", err)
		}
	}
	if strings.EqualFold(opts.ServerLabel, opts.ClientLabel) {
		return Result{}, fmt.Errorf("server and client output folders must be distinct")
	}
	selected := plans(opts)
	if len(selected) == 0 {
		return Result{}, fmt.Errorf("no batches selected")
	}

	if err := runstore.Mkdir(opts.OutputRoot); err != nil {
		return Result{}, err
	}
	lock, err := runstore.AcquireOutputLock(opts.OutputRoot)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release output lock", zap.Error(err))
		}
	}()

	started := time.Now()
	res := Result{RunID: uuid.NewString(), Changes: map[string]string{}}
	logger = logger.With(zap.String("run_id", res.RunID))
	auditEvent(logger, opts.Audit, audit.EventRunStarted, map[string]any{
		"run_id":      res.RunID,
		"game_dir":    opts.GameDir,
		"output_root": opts.OutputRoot,
	})

	for _, p := range selected {
		fmt.Fprintf(out, "\nDecompiling %s...\n", p.label)
		br, err := batch.Decompile(ctx, batch.Options{
			Label:             p.label,
			SourceDir:         p.source,
			OutputDir:         p.output,
			Filter:            opts.Filter,
			ManifestExtension: opts.ManifestExtension,
			Engine:            opts.Engine,
			Workers:           opts.Workers,
			Out:               out,
			Color:             opts.Color,
			Logger:            logger,
			OnOutcome: func(o model.JobOutcome) {
				if o.Succeeded() {
					return
				}
				auditEvent(logger, opts.Audit, audit.EventJobFailed, map[string]any{
					"run_id": res.RunID,
					"batch":  p.label,
					"module": o.Module,
					"error":  o.Message,
				})
			},
		})
		if br != nil {
			res.Batches = append(res.Batches, br)
			res.Succeeded += br.Succeeded
			res.Failed += br.Failed
		}
		if err != nil {
			res.Elapsed = time.Since(started)
			auditEvent(logger, opts.Audit, audit.EventRunFinished, map[string]any{
				"run_id": res.RunID,
				"error":  err.Error(),
			})
			return res, fmt.Errorf("%s batch: %w", p.label, err)
		}

		auditEvent(logger, opts.Audit, audit.EventBatchFinished, map[string]any{
			"run_id":     res.RunID,
			"batch":      p.label,
			"succeeded":  br.Succeeded,
			"failed":     br.Failed,
			"elapsed_ms": br.Elapsed.Milliseconds(),
		})
		diffPath, err := report.RecordModules(opts.OutputRoot, p.label, br.Modules())
		if err != nil {
			logger.Warn("record module list", zap.String("batch", p.label), zap.Error(err))
		} else if diffPath != "" {
			res.Changes[p.label] = diffPath
			logger.Info("module list changed", zap.String("batch", p.label), zap.String("diff", diffPath))
		}
	}

	res.Elapsed = time.Since(started)
	summary := report.Summary{
		RunID:      res.RunID,
		GameDir:    opts.GameDir,
		OutputRoot: opts.OutputRoot,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
		Batches:    res.Batches,
		Changes:    res.Changes,
	}
	if err := report.WriteSummary(summary); err != nil {
		logger.Warn("write run summary", zap.Error(err))
	}
	auditEvent(logger, opts.Audit, audit.EventRunFinished, map[string]any{
		"run_id":     res.RunID,
		"succeeded":  res.Succeeded,
		"failed":     res.Failed,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	})

	if res.Failed == 0 {
		fmt.Fprintln(out, "Finished successfully.")
		return res, nil
	}
	fmt.Fprintf(out, "Finished with %d failed module(s).\n", res.Failed)
	if opts.FailOnJobError {
		return res, fmt.Errorf("%w: %d of %d", ErrJobFailures, res.Failed, res.Succeeded+res.Failed)
	}
	return res, nil
}

func auditEvent(logger *zap.Logger, l *audit.Logger, eventType string, payload any) {
	if err := l.LogEvent(auditActor, eventType, payload); err != nil {
		logger.Warn("audit event dropped", zap.String("type", eventType), zap.Error(err))
	}
}
