package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lwdecomp/internal/config"
	"lwdecomp/internal/driver"
	"lwdecomp/internal/prompt"
)

type globalFlags struct {
	configPath string
	verbose    bool
	jsonOut    bool
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	color  bool
	// newPrompter builds the interactive prompter on first use.
	newPrompter func() prompt.Prompter
	prompter    prompt.Prompter
	logger      *zap.Logger
	cfg         config.Config
	flags       globalFlags
}

func newApp() *app {
	return &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		color:       prompt.IsTerminal(os.Stdout),
		newPrompter: func() prompt.Prompter { return prompt.New(os.Stdin, os.Stdout) },
	}
}

// Run executes the command line and returns the first fatal error.
// Interrupts cancel the context so the current job finishes cleanly.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp().execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func (a *app) rootCommand() *cobra.Command {
	rf := &runFlags{}
	root := &cobra.Command{
		Use:   "lwdecomp [game-directory output-directory]",
		Short: "Decompile every game module of a Logic World install",
		Long: `lwdecomp decompiles the server and client modules of a game install into
one project per module.

With two arguments it decompiles <game-directory> into <output-directory>.
Without arguments it uses the remembered install path (asking for one when
needed) and writes to --output after confirmation.

A game directory named like a subcommand (doctor, watch, history, settings)
must be written as a path, for example ./watch.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDecompile(cmd, args, rf)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default lwdecomp.yml next to the executable)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print JSON output")
	rf.register(root)

	root.AddCommand(
		a.doctorCommand(),
		a.watchCommand(),
		a.historyCommand(),
		a.settingsCommand(),
	)
	return root
}

// setup builds the logger and loads configuration once per invocation.
func (a *app) setup() error {
	if a.logger == nil {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		if a.flags.verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger.Debug("config loaded", zap.String("path", a.configPath()))
	return nil
}

func (a *app) configPath() string {
	if p := strings.TrimSpace(a.flags.configPath); p != "" {
		return p
	}
	return config.DefaultPath()
}

func (a *app) getPrompter() prompt.Prompter {
	if a.prompter == nil && a.newPrompter != nil {
		a.prompter = a.newPrompter()
	}
	return a.prompter
}

// ExitCode maps a Run error to the process status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, driver.ErrJobFailures):
		return 2
	default:
		return 1
	}
}

// PrintError reports a Run error. Precondition messages go to stdout
// as-is; everything else is prefixed on stderr.
func PrintError(stdout, stderr io.Writer, err error) {
	if err == nil {
		return
	}
	var pe *driver.PreconditionError
	if errors.As(err, &pe) {
		fmt.Fprintln(stdout, pe.Message)
		return
	}
	fmt.Fprintln(stderr, "error:", err)
}
