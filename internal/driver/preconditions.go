package driver

import (
	"context"
	"fmt"
	"strings"

	"lwdecomp/internal/install"
	"lwdecomp/internal/runstore"
)

const UsageMessage = "Expected two arguments: <game-directory> <output-directory>"

// PreconditionError reports a missing directory or a wrong argument
// count. The message is printed verbatim before exiting.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// Roots are the two directories a run works between.
type Roots struct {
	GameDir    string
	OutputRoot string
}

// CheckArgs validates explicit-argument mode. Checks run in a fixed order
// and stop at the first failure.
func CheckArgs(args []string, layout install.Layout) (Roots, error) {
	if len(args) != 2 {
		return Roots{}, &PreconditionError{Message: UsageMessage}
	}
	roots := Roots{GameDir: args[0], OutputRoot: args[1]}
	if !runstore.IsDir(roots.GameDir) {
		return Roots{}, &PreconditionError{Message: "Game directory does not exist."}
	}
	if !runstore.IsDir(roots.OutputRoot) {
		return Roots{}, &PreconditionError{Message: "Output directory does not exist."}
	}
	if !runstore.IsDir(layout.ClientPath(roots.GameDir)) {
		return Roots{}, &PreconditionError{Message: "Client DLL folder missing."}
	}
	if !runstore.IsDir(layout.ServerPath(roots.GameDir)) {
		return Roots{}, &PreconditionError{Message: "Server DLL folder missing."}
	}
	return roots, nil
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, question string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// ResolveInteractive is the zero-argument mode: it resolves the install
// root through r, then asks for confirmation unless assumeYes is set.
// proceed is false when the operator declined.
func ResolveInteractive(ctx context.Context, r *install.Resolver, c Confirmer, outputRoot string, assumeYes bool) (roots Roots, proceed bool, err error) {
	if strings.TrimSpace(outputRoot) == "" {
		return Roots{}, false, fmt.Errorf("output directory is required")
	}
	gameDir, err := r.Resolve(ctx)
	if err != nil {
		return Roots{}, false, err
	}
	roots = Roots{GameDir: gameDir, OutputRoot: outputRoot}
	if assumeYes {
		return roots, true, nil
	}
	if c == nil {
		return Roots{}, false, fmt.Errorf("confirmation required: rerun with --yes")
	}
	question := fmt.Sprintf("Decompile %s and %s into %s?",
		r.Layout.ServerPath(gameDir), r.Layout.ClientPath(gameDir), outputRoot)
	ok, err := c.Confirm(ctx, question)
	if err != nil {
		return Roots{}, false, fmt.Errorf("confirm run: %w", err)
	}
	return roots, ok, nil
}
