package install

import (
	"path/filepath"
	"strings"

	"lwdecomp/internal/runstore"
)

type Problem string

const (
	ProblemNone          Problem = ""
	ProblemEmpty         Problem = "empty"
	ProblemMissingRoot   Problem = "missing_root"
	ProblemMissingClient Problem = "missing_client"
	ProblemMissingServer Problem = "missing_server"
)

// Layout is the set of subfolders a usable install root must contain.
// Both paths are slash-separated and relative to the root.
type Layout struct {
	ClientDir string
	ServerDir string
}

// Check is the outcome of validating one candidate root.
type Check struct {
	Root    string
	Problem Problem
	// Path is the directory that failed the check, if any.
	Path string
}

func (c Check) OK() bool {
	return c.Problem == ProblemNone
}

// Message is the operator-facing description of the failed check.
func (c Check) Message() string {
	switch c.Problem {
	case ProblemNone:
		return "install path is valid"
	case ProblemEmpty:
		return "No install path configured."
	case ProblemMissingRoot:
		return "Install directory does not exist: " + c.Path
	case ProblemMissingClient:
		return "Client DLL folder missing: " + c.Path
	case ProblemMissingServer:
		return "Server DLL folder missing: " + c.Path
	default:
		return "install path is invalid: " + c.Path
	}
}

func (l Layout) ClientPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(l.ClientDir))
}

func (l Layout) ServerPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(l.ServerDir))
}

// Check validates root: it must be a directory holding both the client
// and server subfolders. Checks run in that order and stop at the first
// failure.
func (l Layout) Check(root string) Check {
	root = strings.TrimSpace(root)
	if root == "" {
		return Check{Problem: ProblemEmpty}
	}
	if !runstore.IsDir(root) {
		return Check{Root: root, Problem: ProblemMissingRoot, Path: root}
	}
	if p := l.ClientPath(root); !runstore.IsDir(p) {
		return Check{Root: root, Problem: ProblemMissingClient, Path: p}
	}
	if p := l.ServerPath(root); !runstore.IsDir(p) {
		return Check{Root: root, Problem: ProblemMissingServer, Path: p}
	}
	return Check{Root: root}
}
