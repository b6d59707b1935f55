package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lwdecomp/internal/audit"
	"lwdecomp/internal/config"
	"lwdecomp/internal/decompiler"
	"lwdecomp/internal/driver"
	"lwdecomp/internal/filter"
	"lwdecomp/internal/install"
)

const defaultOutputDir = "decompiled"

type runFlags struct {
	skipPrefixes   string
	workers        int
	auditDB        string
	output         string
	cacheFile      string
	maxAttempts    int
	yes            bool
	failOnJobError bool
}

func (rf *runFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&rf.skipPrefixes, "skip-prefixes", "", `semicolon-joined module name prefixes to skip, e.g. "System.;Unity."`)
	f.IntVar(&rf.workers, "workers", 0, "modules decompiled in parallel (default from config)")
	f.StringVar(&rf.auditDB, "audit-db", "", "SQLite audit log path")
	f.StringVar(&rf.output, "output", defaultOutputDir, "output directory when no arguments are given")
	f.StringVar(&rf.cacheFile, "cache-file", "", "install path cache file (default next to the executable)")
	f.IntVar(&rf.maxAttempts, "max-attempts", 0, "give up after this many rejected install paths (0 asks forever)")
	f.BoolVarP(&rf.yes, "yes", "y", false, "skip the confirmation prompt")
	f.BoolVar(&rf.failOnJobError, "fail-on-job-error", false, "exit with status 2 when any module fails")
}

// apply overlays explicitly set flags on the loaded config.
func (rf *runFlags) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	f := cmd.Flags()
	if f.Changed("skip-prefixes") {
		prefixes := filter.ParseList(rf.skipPrefixes).Prefixes()
		if prefixes == nil {
			prefixes = []string{}
		}
		cfg.SkipPrefixes = prefixes
	}
	if f.Changed("workers") {
		if rf.workers < 1 {
			return cfg, fmt.Errorf("--workers must be >= 1")
		}
		cfg.Workers = rf.workers
	}
	if f.Changed("audit-db") {
		cfg.AuditDB = strings.TrimSpace(rf.auditDB)
	}
	if f.Changed("max-attempts") {
		if rf.maxAttempts < 0 {
			return cfg, fmt.Errorf("--max-attempts must be >= 0")
		}
		cfg.MaxPromptAttempts = rf.maxAttempts
	}
	return cfg, nil
}

func layoutOf(cfg config.Config) install.Layout {
	return install.Layout{ClientDir: cfg.Layout.ClientDir, ServerDir: cfg.Layout.ServerDir}
}

func filterOf(cfg config.Config) filter.Filter {
	return filter.Filter{Prefixes: filter.New(cfg.SkipPrefixes...), Extension: cfg.ModuleExtension}
}

func (a *app) engineOf(cfg config.Config) *decompiler.ExecEngine {
	return &decompiler.ExecEngine{
		Command:          cfg.Engine.Command,
		Args:             cfg.Engine.Args,
		ManifestTemplate: cfg.Engine.ManifestTemplate,
		Timeout:          cfg.Engine.JobTimeout,
		Logger:           a.logger,
	}
}

// cacheStore returns the install path store and key. --cache-file names
// the file directly; otherwise it sits next to the executable.
func (a *app) cacheStore(cfg config.Config, rf *runFlags) (install.FileStore, string, error) {
	if p := strings.TrimSpace(rf.cacheFile); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return install.FileStore{}, "", fmt.Errorf("resolve cache file: %w", err)
		}
		return install.FileStore{Dir: filepath.Dir(abs)}, filepath.Base(abs), nil
	}
	dir, err := install.ExecutableDir()
	if err != nil {
		return install.FileStore{}, "", err
	}
	return install.FileStore{Dir: dir}, cfg.CacheFile, nil
}

func (a *app) progressOut() io.Writer {
	if a.flags.jsonOut {
		return a.stderr
	}
	return a.stdout
}

func (a *app) runDecompile(cmd *cobra.Command, args []string, rf *runFlags) error {
	ctx := cmd.Context()
	cfg, err := rf.apply(cmd, a.cfg)
	if err != nil {
		return err
	}
	layout := layoutOf(cfg)

	var roots driver.Roots
	switch len(args) {
	case 2:
		roots, err = driver.CheckArgs(args, layout)
		if err != nil {
			return err
		}
	case 0:
		var proceed bool
		roots, proceed, err = a.resolveInteractive(ctx, cfg, rf)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Fprintln(a.stdout, "Cancelled.")
			return nil
		}
	default:
		return &driver.PreconditionError{Message: driver.UsageMessage}
	}

	if err := decompiler.CheckDependency(cfg.Engine.Command); err != nil {
		return err
	}
	res, err := driver.Run(ctx, a.driverOptions(cfg, roots, rf.failOnJobError))
	if a.flags.jsonOut && res.RunID != "" {
		if perr := printJSON(a.stdout, res); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func (a *app) resolveInteractive(ctx context.Context, cfg config.Config, rf *runFlags) (driver.Roots, bool, error) {
	store, key, err := a.cacheStore(cfg, rf)
	if err != nil {
		return driver.Roots{}, false, err
	}
	p := a.getPrompter()
	resolver := &install.Resolver{
		Store:       store,
		Key:         key,
		Layout:      layoutOf(cfg),
		MaxAttempts: cfg.MaxPromptAttempts,
		Out:         a.stdout,
		Logger:      a.logger,
	}
	var confirmer driver.Confirmer
	if p != nil {
		resolver.Supplier = p
		confirmer = p
	}
	output := strings.TrimSpace(rf.output)
	if output == "" {
		output = defaultOutputDir
	}
	return driver.ResolveInteractive(ctx, resolver, confirmer, output, rf.yes)
}

func (a *app) driverOptions(cfg config.Config, roots driver.Roots, failOnJobError bool) driver.Options {
	return driver.Options{
		Roots:             roots,
		Layout:            layoutOf(cfg),
		ServerLabel:       cfg.Output.Server,
		ClientLabel:       cfg.Output.Client,
		Filter:            filterOf(cfg),
		ManifestExtension: cfg.ManifestExtension,
		Engine:            a.engineOf(cfg),
		Workers:           cfg.Workers,
		Out:               a.progressOut(),
		Color:             a.color && !a.flags.jsonOut,
		Logger:            a.logger,
		Audit:             audit.NewLogger(cfg.AuditDB),
		FailOnJobError:    failOnJobError,
	}
}
