package decompiler

import (
	"context"
	"io"
)

// Request asks an engine to decompile one module into OutputDir.
type Request struct {
	// Module is the file name, e.g. "Assembly-CSharp.dll".
	Module string
	// Name is Module without its extension.
	Name       string
	ModulePath string
	OutputDir  string
	// Manifest is the open project file. The caller owns and closes it.
	Manifest io.Writer
}

// Engine turns one module into a project on disk. A returned error fails
// only that module.
type Engine interface {
	Decompile(ctx context.Context, req Request) error
}

type EngineFunc func(ctx context.Context, req Request) error

func (f EngineFunc) Decompile(ctx context.Context, req Request) error {
	return f(ctx, req)
}
