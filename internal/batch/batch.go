// Package batch runs the decompiler over every eligible module in one
// source folder and writes one project directory per module.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lwdecomp/internal/decompiler"
	"lwdecomp/internal/filter"
	"lwdecomp/internal/model"
	"lwdecomp/internal/runstore"
)

type Options struct {
	Label     string
	SourceDir string
	// OutputDir is deleted and recreated before any job starts.
	OutputDir         string
	Filter            filter.Filter
	ManifestExtension string
	Engine            decompiler.Engine
	// Workers above 1 run jobs concurrently. Jobs write to disjoint
	// directories, so only the result aggregate is shared.
	Workers int
	Out     io.Writer
	Color   bool
	Logger  *zap.Logger
	// OnOutcome observes every finished job. Calls are serialized.
	OnOutcome func(model.JobOutcome)
}

// Decompile runs one batch. Engine failures become failed outcomes in
// the result; only folder-level problems (missing source, output reset)
// and cancellation are returned as errors.
func Decompile(ctx context.Context, opts Options) (*model.BatchResult, error) {
	if opts.Engine == nil {
		return nil, errors.New("decompiler engine is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("output folder is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("batch", opts.Label))
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	totalStart := time.Now()
	res := model.NewBatchResult(opts.Label, opts.SourceDir, opts.OutputDir)

	names, err := ListCandidates(opts.SourceDir)
	if err != nil {
		return nil, err
	}
	if err := runstore.ResetDir(opts.OutputDir); err != nil {
		return nil, fmt.Errorf("reset output folder: %w", err)
	}
	logger.Debug("output folder reset", zap.String("dir", opts.OutputDir))

	candidates := opts.Filter.Select(names)
	jobs := planJobs(opts.SourceDir, opts.OutputDir, candidates, opts.Filter.Extension, opts.ManifestExtension)
	logger.Info("batch started",
		zap.String("source", opts.SourceDir),
		zap.Int("entries", len(names)),
		zap.Int("candidates", len(jobs)),
		zap.Int("workers", workers),
	)

	reporter := newLineReporter(opts.Out, opts.Color, workers)
	record := func(o model.JobOutcome) {
		res.Add(o)
		if !o.Succeeded() {
			logger.Warn("job failed", zap.String("module", o.Module), zap.Duration("elapsed", o.Elapsed), zap.String("error", o.Message))
		} else {
			logger.Debug("job completed", zap.String("module", o.Module), zap.Duration("elapsed", o.Elapsed))
		}
		if opts.OnOutcome != nil {
			opts.OnOutcome(o)
		}
	}

	var runErr error
	if workers == 1 {
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			reporter.Start(job)
			o := runJob(ctx, opts.Engine, job)
			reporter.Finish(o)
			record(o)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		// Serializes reporting and the callback across workers.
		done := make(chan model.JobOutcome)
		collected := make(chan struct{})
		go func() {
			defer close(collected)
			for o := range done {
				reporter.Finish(o)
				record(o)
			}
		}()
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			g.Go(func() error {
				done <- runJob(ctx, opts.Engine, job)
				return nil
			})
		}
		_ = g.Wait()
		close(done)
		<-collected
		res.Sort()
	}

	res.Elapsed = time.Since(totalStart)
	reporter.Summary(res, res.Elapsed)
	logger.Info("batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, runErr
}

func planJobs(sourceDir, outputDir string, names []string, moduleExt, manifestExt string) []model.DecompJob {
	out := make([]model.DecompJob, 0, len(names))
	for i, name := range names {
		dir := filepath.Join(outputDir, name)
		job := model.DecompJob{
			Index:        i + 1,
			Module:       name,
			SourcePath:   filepath.Join(sourceDir, name),
			OutputDir:    dir,
			ManifestPath: filepath.Join(dir, filter.Stem(name, moduleExt)+manifestExt),
		}
		_ = model.TransitionJobStatus(&job, model.StatusPending, "")
		out = append(out, job)
	}
	return out
}

// runJob never returns an error: every failure, including an engine
// panic, is folded into the outcome.
func runJob(ctx context.Context, engine decompiler.Engine, job model.DecompJob) (outcome model.JobOutcome) {
	// The batch folder was just reset, so an existing directory means
	// the filesystem folded this name onto another module's.
	if err := os.Mkdir(job.OutputDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			_ = model.TransitionJobStatus(&job, model.StatusFailed, "output_collision")
			return model.Failure(job, 0, fmt.Sprintf("output directory collides with %s", occupant(job.OutputDir)))
		}
		_ = model.TransitionJobStatus(&job, model.StatusFailed, "output_dir_error")
		return model.Failure(job, 0, fmt.Sprintf("create output directory: %v", err))
	}
	manifest, err := os.Create(job.ManifestPath)
	if err != nil {
		_ = model.TransitionJobStatus(&job, model.StatusFailed, "manifest_error")
		return model.Failure(job, 0, fmt.Sprintf("open manifest: %v", err))
	}
	defer func() {
		if cerr := manifest.Close(); cerr != nil && outcome.Succeeded() {
			outcome = model.Failure(job, outcome.Elapsed, fmt.Sprintf("close manifest: %v", cerr))
		}
	}()

	_ = model.TransitionJobStatus(&job, model.StatusRunning, "")
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			_ = model.TransitionJobStatus(&job, model.StatusFailed, "engine_panic")
			outcome = model.Failure(job, time.Since(start), fmt.Sprintf("engine panic: %v", p))
		}
	}()

	err = engine.Decompile(ctx, decompiler.Request{
		Module:     job.Module,
		Name:       strings.TrimSuffix(filepath.Base(job.ManifestPath), filepath.Ext(job.ManifestPath)),
		ModulePath: job.SourcePath,
		OutputDir:  job.OutputDir,
		Manifest:   manifest,
	})
	elapsed := time.Since(start)
	if err != nil {
		_ = model.TransitionJobStatus(&job, model.StatusFailed, "engine_error")
		return model.Failure(job, elapsed, err.Error())
	}
	_ = model.TransitionJobStatus(&job, model.StatusCompleted, "")
	return model.Success(job, elapsed)
}

// occupant names the existing entry that dir resolved to.
func occupant(dir string) string {
	parent, base := filepath.Split(dir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return base
	}
	for _, e := range entries {
		if e.Name() != base && strings.EqualFold(e.Name(), base) {
			return e.Name()
		}
	}
	return base
}
