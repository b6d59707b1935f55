package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lwdecomp/internal/decompiler"
	"lwdecomp/internal/driver"
	"lwdecomp/internal/watch"
)

func (a *app) watchCommand() *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "watch <game-directory> <output-directory>",
		Short: "Decompile once, then again whenever a module changes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, rf)
		},
	}
	rf.register(cmd)
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string, rf *runFlags) error {
	ctx := cmd.Context()
	cfg, err := rf.apply(cmd, a.cfg)
	if err != nil {
		return err
	}
	layout := layoutOf(cfg)
	roots, err := driver.CheckArgs(args, layout)
	if err != nil {
		return err
	}
	if err := decompiler.CheckDependency(cfg.Engine.Command); err != nil {
		return err
	}

	base := a.driverOptions(cfg, roots, false)
	if _, err := driver.Run(ctx, base); err != nil {
		return err
	}

	w := &watch.Watcher{
		Dirs: map[string]string{
			cfg.Output.Server: layout.ServerPath(roots.GameDir),
			cfg.Output.Client: layout.ClientPath(roots.GameDir),
		},
		Filter: filterOf(cfg),
		Logger: a.logger,
		Run: func(ctx context.Context, label string) error {
			opts := base
			opts.Only = []string{label}
			_, err := driver.Run(ctx, opts)
			return err
		},
	}
	fmt.Fprintln(a.progressOut(), "\nWatching for module changes (Ctrl+C to stop)...")
	return w.Start(ctx)
}
